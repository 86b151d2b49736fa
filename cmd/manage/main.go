// Command manage runs maintenance tasks for the users service:
// schema migrations, database reset and seeding, and the test suite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dco5/users-service/internal/cache"
	"github.com/dco5/users-service/internal/config"
	"github.com/dco5/users-service/internal/migrate"
	"github.com/dco5/users-service/internal/model"
	"github.com/dco5/users-service/internal/repository"
)

// coverProfile is where the cov command writes its profile and report.
const (
	coverProfile = "coverage.out"
	coverReport  = "coverage.html"
)

var errUsage = errors.New("usage")

// app carries what commands need. runGo is a seam for tests.
type app struct {
	stdout  io.Writer
	stderr  io.Writer
	logger  *slog.Logger
	timeout time.Duration
	verbose bool
	loadCfg func() (*config.Config, error)
	runGo   func(ctx context.Context, args ...string) error
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app) error
}

var commands = map[string]command{
	"migrate":     {"apply all pending migrations", runMigrate},
	"rollback":    {"revert the latest migration", runRollback},
	"recreate_db": {"drop and re-create the schema, flush the user cache", runRecreateDB},
	"seed_db":     {"insert the sample users", runSeedDB},
	"reset_users": {"delete every user and restart ids, flush the user cache", runResetUsers},
	"test":        {"run the test suite", runTests},
	"cov":         {"run the test suite with a coverage report", runCoverage},
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}

	a := &app{
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		logger:  slog.New(slog.NewTextHandler(os.Stderr, nil)),
		loadCfg: config.Load,
		runGo:   execGo,
	}

	if err := a.run(context.Background(), os.Args[1:]); err != nil {
		if !errors.Is(err, errUsage) {
			a.logger.Error("command failed", "error", err)
		}
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	name, err := a.parse(args)
	if err != nil {
		return err
	}

	cmd := commands[name]
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := cmd.run(ctx, a); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	a.logger.Info("command finished", "command", name, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (a *app) parse(args []string) (string, error) {
	fs := flag.NewFlagSet("manage", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.DurationVar(&a.timeout, "timeout", 0, "Overall command timeout (0 for none)")
	fs.BoolVar(&a.verbose, "v", true, "Verbose test output")
	fs.Usage = func() { a.usage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return "", errUsage
		}
		return "", fmt.Errorf("%w: %v", errUsage, err)
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return "", errUsage
	}

	name := fs.Arg(0)
	if _, ok := commands[name]; !ok {
		fmt.Fprintf(a.stderr, "unknown command %q\n", name)
		fs.Usage()
		return "", errUsage
	}
	return name, nil
}

func (a *app) usage(fs *flag.FlagSet) {
	fmt.Fprintln(a.stderr, "usage: manage [flags] <command>")
	fmt.Fprintln(a.stderr, "\ncommands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(a.stderr, "  %-12s %s\n", name, commands[name].usage)
	}

	fmt.Fprintln(a.stderr, "\nflags:")
	fs.PrintDefaults()
}

func (a *app) migrator(ctx context.Context) (*migrate.Migrator, *config.Config, error) {
	cfg, err := a.loadCfg()
	if err != nil {
		return nil, nil, err
	}
	m, err := migrate.Open(ctx, cfg.DatabaseDSN())
	if err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}

func runMigrate(ctx context.Context, a *app) error {
	m, _, err := a.migrator(ctx)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up(ctx)
}

func runRollback(ctx context.Context, a *app) error {
	m, _, err := a.migrator(ctx)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Down(ctx)
}

// repository opens a single-connection pool; commands run one statement
// at a time.
func (a *app) repository(ctx context.Context) (*repository.Repository, *config.Config, error) {
	cfg, err := a.loadCfg()
	if err != nil {
		return nil, nil, err
	}
	repo, err := repository.New(ctx, cfg.DatabaseDSN(), repository.PoolOptions{
		MaxConns:        1,
		MaxConnIdleTime: cfg.DatabaseMaxConnIdleTime,
	})
	if err != nil {
		return nil, nil, err
	}
	return repo, cfg, nil
}

// flushUserCache drops cached users so they cannot outlive their rows.
func (a *app) flushUserCache(ctx context.Context, cfg *config.Config) error {
	if !cfg.CacheEnabled() {
		return nil
	}
	c, err := cache.New(ctx, cfg.RedisURL, cfg.UserCacheTTL)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.FlushUsers(ctx); err != nil {
		return err
	}
	a.logger.Info("user cache flushed")
	return nil
}

func runRecreateDB(ctx context.Context, a *app) error {
	m, cfg, err := a.migrator(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Recreate(ctx); err != nil {
		return err
	}
	return a.flushUserCache(ctx, cfg)
}

func runResetUsers(ctx context.Context, a *app) error {
	repo, cfg, err := a.repository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.ResetUsers(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "users reset")
	return a.flushUserCache(ctx, cfg)
}

// seedUsers returns the sample users inserted by seed_db.
func seedUsers() []*model.User {
	return []*model.User{
		model.NewUser("jaime", "jaime@mail.com"),
		model.NewUser("carlos", "carlos@mail.com"),
	}
}

func runSeedDB(ctx context.Context, a *app) error {
	repo, _, err := a.repository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	users := seedUsers()
	if err := repo.SeedUsers(ctx, users); err != nil {
		return err
	}
	for _, u := range users {
		fmt.Fprintf(a.stdout, "seeded %d %s <%s>\n", u.ID, u.Username, u.Email)
	}
	return nil
}

func testArgs(verbose bool) []string {
	args := []string{"test"}
	if verbose {
		args = append(args, "-v")
	}
	return append(args, "./...")
}

func coverArgs(verbose bool) [][]string {
	test := []string{"test"}
	if verbose {
		test = append(test, "-v")
	}
	test = append(test, "-coverprofile="+coverProfile, "./...")

	return [][]string{
		test,
		{"tool", "cover", "-func=" + coverProfile},
		{"tool", "cover", "-html=" + coverProfile, "-o", coverReport},
	}
}

func runTests(ctx context.Context, a *app) error {
	return a.runGo(ctx, testArgs(a.verbose)...)
}

func runCoverage(ctx context.Context, a *app) error {
	for _, args := range coverArgs(a.verbose) {
		if err := a.runGo(ctx, args...); err != nil {
			return err
		}
	}
	report, err := filepath.Abs(coverReport)
	if err != nil {
		report = coverReport
	}
	fmt.Fprintf(a.stdout, "HTML version: file://%s\n", report)
	return nil
}

func execGo(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go %s: %w", strings.Join(args, " "), err)
	}
	return nil
}
