// ABOUTME: Operator CLI for the chatd backend: seed data, mint tokens, inspect users
// ABOUTME: Opens the SQLite database directly; no running server required

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/freetonight/chatd/internal/auth"
	"github.com/freetonight/chatd/internal/config"
	"github.com/freetonight/chatd/internal/store"
)

const banner = `
       _           _            _           _
   ___| |__   __ _| |_ __ _  __| |_ __ ___ (_)_ __
  / __| '_ \ / _' | __/ _' |/ _' | '_ ' _ \| | '_ \
 | (__| | | | (_| | || (_| | (_| | | | | | | | | | |
  \___|_| |_|\__,_|\__\__,_|\__,_|_| |_| |_|_|_| |_|
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "seed":
		err = cmdSeed(args)
	case "token":
		err = cmdToken(args)
	case "users":
		err = cmdUsers(args)
	case "stats":
		err = cmdStats(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: chatadmin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  seed                    Load the built-in demo fixture into the database")
	fmt.Println("  seed --file <path>      Load a TOML fixture from a file")
	fmt.Println("  users                   List all user accounts")
	fmt.Println("  users list              List all user accounts")
	fmt.Println("  users create            Create a user account")
	fmt.Println("  token create            Mint a session token for a user")
	fmt.Println("  stats                   Show table counts")
	fmt.Println()
	yellow.Println("Options:")
	fmt.Println("  --config, -c <path>     Config file (default: same resolution as chatd)")
	fmt.Println("  --db <path>             SQLite database path (overrides config)")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  CHATD_CONFIG            Config file path")
	fmt.Println("  CHATD_DB_PATH           SQLite database path")
	fmt.Println("  CHAT_SESSION_SECRET     Token signing secret (must match the server)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  chatadmin seed")
	fmt.Println("  chatadmin users create --name 'Mia' --email mia@example.com --password s3cret")
	fmt.Println("  chatadmin token create --user 3 --ttl 24h")
	fmt.Println()
}

// commonFlags is shared by all subcommands: config file and database path
// overrides, plus whatever the command itself defines.
type commonFlags struct {
	configPath string
	dbPath     string
	rest       []string
}

func parseCommonFlags(args []string) (commonFlags, error) {
	var flags commonFlags
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config" || args[i] == "-c":
			if i+1 >= len(args) {
				return flags, fmt.Errorf("--config requires a value")
			}
			flags.configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--config="):
			flags.configPath = strings.TrimPrefix(args[i], "--config=")
		case args[i] == "--db":
			if i+1 >= len(args) {
				return flags, fmt.Errorf("--db requires a value")
			}
			flags.dbPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--db="):
			flags.dbPath = strings.TrimPrefix(args[i], "--db=")
		default:
			flags.rest = append(flags.rest, args[i])
		}
	}
	return flags, nil
}

// loadConfig mirrors the server's resolution: explicit flag, CHATD_CONFIG,
// the XDG path, then built-in defaults when no file exists.
func loadConfig(explicitPath string) (*config.Config, error) {
	path := explicitPath
	if path == "" {
		path = os.Getenv("CHATD_CONFIG")
	}
	if path == "" {
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return config.Default(), nil
			}
			configDir = filepath.Join(homeDir, ".config")
		}
		path = filepath.Join(configDir, "chatd", "config.yaml")
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && explicitPath == "" {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return config.Load(path)
}

// openStore resolves the database path and opens it. The flag wins over the
// config file.
func openStore(flags commonFlags) (*store.SQLiteStore, *config.Config, error) {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return nil, nil, err
	}

	dbPath := flags.dbPath
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}

	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}
	return db, cfg, nil
}

// cmdSeed loads a fixture: the embedded demo set, or a TOML file.
func cmdSeed(args []string) error {
	flags, err := parseCommonFlags(args)
	if err != nil {
		return err
	}

	var fixturePath string
	for i := 0; i < len(flags.rest); i++ {
		switch {
		case flags.rest[i] == "--file" || flags.rest[i] == "-f":
			if i+1 >= len(flags.rest) {
				return fmt.Errorf("--file requires a value")
			}
			fixturePath = flags.rest[i+1]
			i++
		case strings.HasPrefix(flags.rest[i], "--file="):
			fixturePath = strings.TrimPrefix(flags.rest[i], "--file=")
		default:
			return fmt.Errorf("unexpected argument: %s", flags.rest[i])
		}
	}

	db, _, err := openStore(flags)
	if err != nil {
		return err
	}
	defer db.Close()

	var fixture *store.SeedFixture
	var source string
	if fixturePath != "" {
		data, err := os.ReadFile(fixturePath)
		if err != nil {
			return fmt.Errorf("reading fixture: %w", err)
		}
		fixture, err = store.ParseSeedFixture(data)
		if err != nil {
			return fmt.Errorf("parsing fixture: %w", err)
		}
		source = fixturePath
	} else {
		fixture, err = store.DemoFixture()
		if err != nil {
			return fmt.Errorf("loading demo fixture: %w", err)
		}
		source = "built-in demo fixture"
	}

	ctx := context.Background()
	if err := db.Seed(ctx, fixture); err != nil {
		return fmt.Errorf("seeding: %w", err)
	}

	counts, err := db.Counts(ctx)
	if err != nil {
		return fmt.Errorf("counting rows: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Seeded from %s\n", source)
	fmt.Printf("  Users:          %d\n", counts.Users)
	fmt.Printf("  Events:         %d\n", counts.Events)
	fmt.Printf("  Conversations:  %d\n", counts.Conversations)
	fmt.Printf("  Messages:       %d\n", counts.Messages)

	return nil
}

// cmdToken handles token subcommands.
func cmdToken(args []string) error {
	subcmd := ""
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "create":
		return cmdTokenCreate(args)
	default:
		return fmt.Errorf("usage: token create --user <id> [--ttl <duration>]")
	}
}

// cmdTokenCreate mints a session token with the configured signing secret.
// The user must exist; the token embeds their email.
func cmdTokenCreate(args []string) error {
	flags, err := parseCommonFlags(args)
	if err != nil {
		return err
	}

	var userID int64
	var ttl time.Duration

	for i := 0; i < len(flags.rest); i++ {
		switch flags.rest[i] {
		case "--user", "--user-id", "-u":
			if i+1 >= len(flags.rest) {
				return fmt.Errorf("--user requires a value")
			}
			if _, err := fmt.Sscanf(flags.rest[i+1], "%d", &userID); err != nil {
				return fmt.Errorf("invalid user id %q", flags.rest[i+1])
			}
			i++
		case "--ttl", "-t":
			if i+1 >= len(flags.rest) {
				return fmt.Errorf("--ttl requires a value")
			}
			ttl, err = time.ParseDuration(flags.rest[i+1])
			if err != nil {
				return fmt.Errorf("invalid ttl: %w", err)
			}
			i++
		default:
			return fmt.Errorf("unexpected argument: %s", flags.rest[i])
		}
	}

	if userID == 0 {
		return fmt.Errorf("usage: token create --user <id> [--ttl <duration>]")
	}

	db, cfg, err := openStore(flags)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := db.GetUserByID(context.Background(), userID)
	if err != nil {
		return fmt.Errorf("looking up user %d: %w", userID, err)
	}

	if ttl <= 0 {
		ttl = cfg.Auth.SessionTTL
	}

	signer := auth.NewSigner([]byte(cfg.Auth.SessionSecret), ttl)
	token, claims, err := signer.Issue(user.ID, user.Email)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	green.Println("  Token created")
	fmt.Println()
	cyan.Printf("  User:     %s (id %d)\n", user.Name, user.ID)
	cyan.Println("  Expires:  " + claims.ExpiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("  Token (keep this secret!):")
	fmt.Println()
	fmt.Println("  " + token)
	fmt.Println()
	if cfg.UsingDevSecret() {
		yellow.Println("  ⚠ signed with the built-in dev secret; the server must use the same one")
	}

	return nil
}

// cmdUsers handles user subcommands.
func cmdUsers(args []string) error {
	subcmd := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return cmdUsersList(args)
	case "create", "add":
		return cmdUsersCreate(args)
	default:
		return fmt.Errorf("unknown users subcommand: %s (use list, create)", subcmd)
	}
}

// cmdUsersList prints all accounts.
func cmdUsersList(args []string) error {
	flags, err := parseCommonFlags(args)
	if err != nil {
		return err
	}

	db, _, err := openStore(flags)
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := db.ListUsers(context.Background(), 0)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Users")
	cyan.Println("  -----")

	if len(users) == 0 {
		fmt.Println("  (no users)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tEMAIL\tCREATED")
	fmt.Fprintln(w, "  --\t----\t-----\t-------")

	for _, u := range users {
		name := truncate(u.Name, 24)
		email := truncate(u.Email, 32)
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n", u.ID, name, email, u.CreatedAt.Format("Jan 02 15:04"))
	}
	w.Flush()
	fmt.Println()

	return nil
}

// cmdUsersCreate adds an account.
func cmdUsersCreate(args []string) error {
	flags, err := parseCommonFlags(args)
	if err != nil {
		return err
	}

	var name, email, password string

	for i := 0; i < len(flags.rest); i++ {
		switch flags.rest[i] {
		case "--name", "-n":
			if i+1 < len(flags.rest) {
				name = flags.rest[i+1]
				i++
			}
		case "--email", "-e":
			if i+1 < len(flags.rest) {
				email = flags.rest[i+1]
				i++
			}
		case "--password", "-p":
			if i+1 < len(flags.rest) {
				password = flags.rest[i+1]
				i++
			}
		}
	}

	if name == "" || email == "" || password == "" {
		return fmt.Errorf("usage: users create --name <name> --email <email> --password <password>")
	}

	db, _, err := openStore(flags)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := db.CreateUser(context.Background(), store.CreateUserParams{
		Name:     name,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Created user: %d\n", user.ID)
	fmt.Printf("  Name:   %s\n", user.Name)
	fmt.Printf("  Email:  %s\n", user.Email)

	return nil
}

// cmdStats prints row counts.
func cmdStats(args []string) error {
	flags, err := parseCommonFlags(args)
	if err != nil {
		return err
	}

	db, _, err := openStore(flags)
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := db.Counts(context.Background())
	if err != nil {
		return fmt.Errorf("counting rows: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Database")
	cyan.Println("  --------")
	fmt.Printf("  Users:          %d\n", counts.Users)
	fmt.Printf("  Events:         %d\n", counts.Events)
	fmt.Printf("  Conversations:  %d\n", counts.Conversations)
	fmt.Printf("  Messages:       %d\n", counts.Messages)
	fmt.Printf("  Join requests:  %d\n", counts.JoinRequests)
	fmt.Println()

	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
