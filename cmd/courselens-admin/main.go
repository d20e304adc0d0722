package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/courselens/courselens-api/config"
	redisadapter "github.com/courselens/courselens-api/internal/adapters/redis"
	"github.com/courselens/courselens-api/internal/bootstrap"
	"github.com/courselens/courselens-api/internal/data"
	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
	"github.com/courselens/courselens-api/internal/domain/model"
	"github.com/courselens/courselens-api/internal/service"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultCommandTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"db-reset": {
			name:        "db-reset",
			description: "Drop the database schema and re-run migrations",
			run:         runDBReset,
		},
		"list-students": {
			name:        "list-students",
			description: "List student profiles, optionally filtered",
			run:         runListStudents,
		},
		"grant-role": {
			name:        "grant-role",
			description: "Assign a role to an account by email",
			run:         runGrantRole,
		},
		"block-student": {
			name:        "block-student",
			description: "Block (or unblock) a student and revoke their sessions",
			run:         runBlockStudent,
		},
		"delete-account": {
			name:        "delete-account",
			description: "Permanently delete an account: profile, role, feedback, identity, sessions",
			run:         runDeleteAccount,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: courselens-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	for _, c := range commands() {
		if err := writef(os.Stdout, "  %-20s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
}

type dbResetOptions struct {
	Timeout     time.Duration
	Yes         bool
	AllowRemote bool
}

type listStudentsOptions struct {
	Query   string
	Blocked bool
	Limit   int
	Offset  int
}

type grantRoleOptions struct {
	Email string
	Role  string
}

type blockStudentOptions struct {
	Email   string
	Unblock bool
}

type deleteAccountOptions struct {
	Email string
	Yes   bool
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("running database migrations")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}
		cmdCtx.Logger.Info("migrations completed successfully")
		return nil
	})
}

func runDBReset(cmdCtx *commandContext, args []string) error {
	opts, err := parseDBResetFlags(args)
	if err != nil {
		return err
	}

	if guardErr := guardRemoteHost(cmdCtx, opts.AllowRemote); guardErr != nil {
		return guardErr
	}
	if !opts.Yes {
		return errors.New("db-reset is destructive; re-run with --yes to confirm")
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("dropping public schema", "database", cmdCtx.Config.Postgres.Name)
		statements := []string{
			"DROP SCHEMA public CASCADE",
			"CREATE SCHEMA public",
			"GRANT ALL ON SCHEMA public TO public",
		}
		for _, stmt := range statements {
			if _, execErr := db.ExecContext(ctx, stmt); execErr != nil {
				return fmt.Errorf("exec %q: %w", stmt, execErr)
			}
		}

		cmdCtx.Logger.Info("re-running database migrations")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}

		cmdCtx.Logger.Info("database reset completed successfully")
		return nil
	})
}

func runListStudents(cmdCtx *commandContext, args []string) error {
	opts, err := parseListStudentsFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		listOpts := model.StudentListOptions{
			Limit:  opts.Limit,
			Offset: opts.Offset,
		}
		if opts.Query != "" {
			listOpts.Q = &opts.Query
		}
		if opts.Blocked {
			blocked := true
			listOpts.Blocked = &blocked
		}

		profiles, listErr := data.NewProfileRepo(db).List(ctx, listOpts)
		if listErr != nil {
			return fmt.Errorf("list profiles: %w", listErr)
		}

		if len(profiles) == 0 {
			return writeln(os.Stdout, "(no matching students)")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		if headerErr := writeln(w, "User ID\tName\tEmail\tBlocked\tCreated"); headerErr != nil {
			return headerErr
		}
		for _, p := range profiles {
			if rowErr := writef(w, "%s\t%s\t%s\t%t\t%s\n",
				p.UserID, p.Name, p.Email, p.IsBlocked, p.CreatedAt.Format(time.RFC3339)); rowErr != nil {
				return rowErr
			}
		}
		if flushErr := w.Flush(); flushErr != nil {
			return fmt.Errorf("flush student table: %w", flushErr)
		}
		return nil
	})
}

func runGrantRole(cmdCtx *commandContext, args []string) error {
	opts, err := parseGrantRoleFlags(args)
	if err != nil {
		return err
	}
	role, ok := domainauth.ParseRole(opts.Role)
	if !ok || role == domainauth.RoleNone {
		return fmt.Errorf("invalid role %q (valid options: student, admin)", opts.Role)
	}

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		profile, findErr := findProfileByEmail(ctx, db, opts.Email)
		if findErr != nil {
			return findErr
		}

		if upsertErr := data.NewRoleRepo(db).UpsertRole(ctx, profile.UserID, role); upsertErr != nil {
			return fmt.Errorf("upsert role: %w", upsertErr)
		}

		cmdCtx.Logger.Info("role granted", "email", opts.Email, "user_id", profile.UserID, "role", role)
		return nil
	})
}

func runBlockStudent(cmdCtx *commandContext, args []string) error {
	opts, err := parseBlockStudentFlags(args)
	if err != nil {
		return err
	}

	return withAccountService(cmdCtx, func(ctx context.Context, db *sql.DB, accounts *service.AccountService) error {
		profile, findErr := findProfileByEmail(ctx, db, opts.Email)
		if findErr != nil {
			return findErr
		}

		blocked := !opts.Unblock
		if setErr := accounts.SetBlocked(ctx, profile.UserID, blocked); setErr != nil {
			return fmt.Errorf("set blocked: %w", setErr)
		}

		cmdCtx.Logger.Info("moderation flag updated",
			"email", opts.Email, "user_id", profile.UserID, "blocked", blocked)
		return nil
	})
}

func runDeleteAccount(cmdCtx *commandContext, args []string) error {
	opts, err := parseDeleteAccountFlags(args)
	if err != nil {
		return err
	}
	if !opts.Yes {
		return errors.New("delete-account is destructive; re-run with --yes to confirm")
	}

	return withAccountService(cmdCtx, func(ctx context.Context, db *sql.DB, accounts *service.AccountService) error {
		profile, findErr := findProfileByEmail(ctx, db, opts.Email)
		if findErr != nil {
			return findErr
		}

		if delErr := accounts.DeleteAccount(ctx, profile.UserID); delErr != nil {
			return fmt.Errorf("delete account: %w", delErr)
		}

		cmdCtx.Logger.Info("account deleted", "email", opts.Email, "user_id", profile.UserID)
		return nil
	})
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{Timeout: defaultCommandTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout,
		"Maximum duration to wait for migrations to complete")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func parseDBResetFlags(args []string) (dbResetOptions, error) {
	fs := flag.NewFlagSet("db-reset", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := dbResetOptions{Timeout: defaultCommandTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout,
		"Maximum duration to wait for reset operations to complete")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")
	fs.BoolVar(&opts.AllowRemote, "allow-remote", false,
		"Permit running against database hosts that do not look local")

	if err := fs.Parse(args); err != nil {
		return dbResetOptions{}, err
	}
	if opts.Timeout <= 0 {
		return dbResetOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func parseListStudentsFlags(args []string) (listStudentsOptions, error) {
	fs := flag.NewFlagSet("list-students", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listStudentsOptions
	fs.StringVar(&opts.Query, "q", "", "Filter by name or email substring")
	fs.BoolVar(&opts.Blocked, "blocked", false, "Only show blocked students")
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum rows to display")
	fs.IntVar(&opts.Offset, "offset", 0, "Offset into the result set")

	if err := fs.Parse(args); err != nil {
		return listStudentsOptions{}, err
	}
	return opts, nil
}

func parseGrantRoleFlags(args []string) (grantRoleOptions, error) {
	fs := flag.NewFlagSet("grant-role", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts grantRoleOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Role, "role", "", "Role to assign: student or admin (required)")

	if err := fs.Parse(args); err != nil {
		return grantRoleOptions{}, err
	}
	opts.Email = strings.TrimSpace(opts.Email)
	if opts.Email == "" {
		return grantRoleOptions{}, errors.New("--email is required")
	}
	if strings.TrimSpace(opts.Role) == "" {
		return grantRoleOptions{}, errors.New("--role is required")
	}
	return opts, nil
}

func parseBlockStudentFlags(args []string) (blockStudentOptions, error) {
	fs := flag.NewFlagSet("block-student", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts blockStudentOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.BoolVar(&opts.Unblock, "unblock", false, "Clear the block instead of setting it")

	if err := fs.Parse(args); err != nil {
		return blockStudentOptions{}, err
	}
	opts.Email = strings.TrimSpace(opts.Email)
	if opts.Email == "" {
		return blockStudentOptions{}, errors.New("--email is required")
	}
	return opts, nil
}

func parseDeleteAccountFlags(args []string) (deleteAccountOptions, error) {
	fs := flag.NewFlagSet("delete-account", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts deleteAccountOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return deleteAccountOptions{}, err
	}
	opts.Email = strings.TrimSpace(opts.Email)
	if opts.Email == "" {
		return deleteAccountOptions{}, errors.New("--email is required")
	}
	return opts, nil
}

func withDatabase(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, *sql.DB) error,
) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", cerr)
		}
	}()

	return f(ctx, db)
}

// withAccountService wires the full moderation path: database, session store,
// and the auth backend for identity deletion.
func withAccountService(
	cmdCtx *commandContext,
	f func(context.Context, *sql.DB, *service.AccountService) error,
) error {
	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		redisClient, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
			RedisConfig: cmdCtx.Config.Redis,
			Logger:      cmdCtx.Logger,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				cmdCtx.Logger.Warn("redis close failed", "error", cerr)
			}
		}()

		auth, err := bootstrap.BuildAuthRuntime(ctx, cmdCtx.Config.Auth)
		if err != nil {
			return err
		}

		accounts := service.NewAccountService(service.AccountServiceOptions{
			Profiles:   data.NewProfileRepo(db),
			Roles:      data.NewRoleRepo(db),
			Feedback:   data.NewFeedbackRepo(db),
			Sessions:   redisadapter.NewSessionStore(redisClient),
			Identities: auth.Identities,
			Logger:     cmdCtx.Logger,
		})

		return f(ctx, db, accounts)
	})
}

// findProfileByEmail resolves an account's profile via an exact email match.
func findProfileByEmail(ctx context.Context, db *sql.DB, email string) (model.Profile, error) {
	q := email
	profiles, err := data.NewProfileRepo(db).List(ctx, model.StudentListOptions{Q: &q, Limit: 50})
	if err != nil {
		return model.Profile{}, fmt.Errorf("look up profile: %w", err)
	}
	for _, p := range profiles {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return model.Profile{}, fmt.Errorf("no profile found for email %q", email)
}

func guardRemoteHost(cmdCtx *commandContext, allow bool) error {
	host := cmdCtx.Config.Postgres.Host
	if !isLikelyRemoteHost(host) {
		return nil
	}
	if !allow {
		return fmt.Errorf(
			"refusing to run against potentially remote database host %q; re-run with --allow-remote if this is intentional",
			host,
		)
	}
	cmdCtx.Logger.Warn("running destructive command against remote-looking host", "host", host)
	return nil
}

func isLikelyRemoteHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return false
	}
	if h == "localhost" || h == "127.0.0.1" || h == "::1" {
		return false
	}
	if strings.HasSuffix(h, ".local") {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		return !ip.IsLoopback()
	}
	return true
}

func writef(w io.Writer, format string, args ...any) error {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func writeln(w io.Writer, args ...any) error {
	if _, err := fmt.Fprintln(w, args...); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
