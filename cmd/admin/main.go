package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgetbridge/internal/domain/messaging"
	"budgetbridge/internal/domain/reconcile"
	"budgetbridge/internal/domain/session"
	"budgetbridge/internal/domain/statement"
	"budgetbridge/internal/domain/user"
	"budgetbridge/internal/infrastructure/crypto"
	"budgetbridge/internal/infrastructure/postgres"
	statementparsers "budgetbridge/internal/infrastructure/statement"
	"budgetbridge/internal/infrastructure/ynab"
	"budgetbridge/internal/shared/config"
	"budgetbridge/internal/shared/logger"
	"budgetbridge/internal/shared/messages"

	"github.com/rs/zerolog/log"
)

const usage = `budgetbridge admin CLI - management commands for the bot database

Usage:
  admin <command> [options]

Commands:
  migrate       Create or update the database schema
  list-users    Print every stored messenger user id
  show-user     Print a user's defaults, mappings and token expiry
  remove-user   Delete a user's stored data
  merge-file    Merge a bank statement file into a user's budget

Examples:
  admin show-user --user=123456789
  admin remove-user --user=123456789
  admin merge-file --user=123456789 --file=./may.bank.csv
  admin merge-file --user=123456789 --file=./operations.csv --timeout=10m
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	l := logger.New(logger.Config{Level: os.Getenv("LOG_LEVEL"), Pretty: true})
	logger.SetGlobalLogger(l)

	var err error
	switch command := os.Args[1]; command {
	case "migrate":
		err = runMigrate(os.Args[2:])
	case "list-users":
		err = runListUsers(os.Args[2:])
	case "show-user":
		err = runShowUser(os.Args[2:])
	case "remove-user":
		err = runRemoveUser(os.Args[2:])
	case "merge-file":
		err = runMergeFile(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage + "\n")
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	if err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

// env is the state shared by every command.
type env struct {
	cfg   *config.Config
	db    *postgres.DB
	users *postgres.UserRepository
}

func connect(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.New(ctx, cfg.Database.ConnectionString(), postgres.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info().Msg("Connected to database")

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &env{cfg: cfg, db: db, users: postgres.NewUserRepository(db, encryptor)}, nil
}

func (e *env) Close() {
	e.db.Close()
}

func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(logger.WithContext(context.Background(), log.Logger), timeout)
}

func parseFlags(fs *flag.FlagSet, args []string, examples ...string) {
	fs.Usage = func() {
		fmt.Printf("Usage: admin %s [options]\n", fs.Name())
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		if len(examples) > 0 {
			fmt.Println("\nExamples:")
			for _, e := range examples {
				fmt.Println("  " + e)
			}
		}
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
}

func requireUser(fs *flag.FlagSet, id string) {
	if strings.TrimSpace(id) == "" {
		fmt.Println("Error: must specify --user")
		fs.Usage()
		os.Exit(1)
	}
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	parseFlags(fs, args)

	ctx, cancel := commandContext(time.Minute)
	defer cancel()

	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.db.Migrate(ctx); err != nil {
		return err
	}
	fmt.Println("Schema is up to date")
	return nil
}

func runListUsers(args []string) error {
	fs := flag.NewFlagSet("list-users", flag.ExitOnError)
	parseFlags(fs, args)

	ctx, cancel := commandContext(time.Minute)
	defer cancel()

	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	ids, err := e.users.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	fmt.Printf("%d user(s)\n", len(ids))
	return nil
}

func runShowUser(args []string) error {
	fs := flag.NewFlagSet("show-user", flag.ExitOnError)
	userID := fs.String("user", "", "Messenger user id")
	parseFlags(fs, args, "admin show-user --user=123456789")
	requireUser(fs, *userID)

	ctx, cancel := commandContext(time.Minute)
	defer cancel()

	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	u, err := e.users.Get(ctx, *userID)
	if err != nil {
		return err
	}
	printUser(os.Stdout, u)
	return nil
}

func runRemoveUser(args []string) error {
	fs := flag.NewFlagSet("remove-user", flag.ExitOnError)
	userID := fs.String("user", "", "Messenger user id")
	parseFlags(fs, args, "admin remove-user --user=123456789")
	requireUser(fs, *userID)

	ctx, cancel := commandContext(time.Minute)
	defer cancel()

	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.users.Delete(ctx, *userID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			fmt.Printf("User %s not found\n", *userID)
			return nil
		}
		return err
	}
	fmt.Printf("User %s removed\n", *userID)
	return nil
}

func runMergeFile(args []string) error {
	fs := flag.NewFlagSet("merge-file", flag.ExitOnError)
	userID := fs.String("user", "", "Messenger user id whose budget receives the transactions")
	path := fs.String("file", "", "Bank statement file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Timeout for the operation (e.g., 5m, 1h)")
	parseFlags(fs, args,
		"admin merge-file --user=123456789 --file=./may.bank.csv",
		"admin merge-file --user=123456789 --file=./operations.csv --timeout=10m",
	)
	requireUser(fs, *userID)
	if *path == "" {
		fmt.Println("Error: must specify --file")
		fs.Usage()
		os.Exit(1)
	}

	content, err := os.ReadFile(*path)
	if err != nil {
		return fmt.Errorf("failed to read statement: %w", err)
	}

	ctx, cancel := commandContext(*timeout)
	defer cancel()

	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	// Make sure the user exists; the session would otherwise create it.
	if _, err := e.users.Get(ctx, *userID); err != nil {
		return err
	}

	scope, err := reconcile.ParseLockScope(e.cfg.Bot.MergeLockScope)
	if err != nil {
		return err
	}
	ledgerClient := ynab.NewClient(e.cfg.YNAB.APIURL)
	registry := session.NewRegistry(&session.Deps{
		Users:  e.users,
		Ledger: ledgerClient,
		Auth: ynab.NewOAuth(ynab.OAuthConfig{
			ClientID:     e.cfg.YNAB.ClientID,
			ClientSecret: e.cfg.YNAB.ClientSecret,
			RedirectURL:  e.cfg.YNAB.RedirectURL,
			AuthBaseURL:  e.cfg.YNAB.AuthURL,
		}, ledgerClient.HTTPClient()),
		Engine:  reconcile.NewEngine(ledgerClient, reconcile.NewLocker(scope)),
		Parsers: statement.NewRegistry(statementparsers.Parsers()...),
		Sender:  newConsoleSender(os.Stdout),
		Texts:   messages.Default(),
	})

	target := messaging.ReplyTarget{UserID: *userID}
	s, err := registry.Get(ctx, target)
	if err != nil {
		return err
	}
	if s.State() != session.StateReady {
		return fmt.Errorf("user %s is not set up (state %s)", *userID, s.State())
	}
	return s.HandleFile(ctx, target, filepath.Base(*path), content)
}
