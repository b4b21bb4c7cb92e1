package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/target/prospector/config"
	"github.com/target/prospector/internal/bootstrap"
	"github.com/target/prospector/internal/data"
	"github.com/target/prospector/internal/devseed"
	"github.com/target/prospector/internal/service"
)

const defaultMigrationTimeout = 5 * time.Minute

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var dbSeedCmd = &cobra.Command{
	Use:   "db-seed",
	Short: "Run migrations and seed the stock audience presets",
	Long: `Creates the local_business, ecommerce and saas audiences if they do not exist.
Existing audiences with the same names are left as they are.`,
	Args: cobra.NoArgs,
	RunE: runDBSeed,
}

var (
	dbTimeout     time.Duration
	dbAllowRemote bool
)

func init() {
	for _, c := range []*cobra.Command{migrateCmd, dbSeedCmd} {
		c.Flags().DurationVar(&dbTimeout, "db-timeout", defaultMigrationTimeout, "Overall timeout for the database operation")
	}
	dbSeedCmd.Flags().BoolVar(&dbAllowRemote, "allow-remote", false, "Permit running against database hosts that do not look local")

	rootCmd.AddCommand(migrateCmd, dbSeedCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	return withDatabase(cmd, func(ctx context.Context, _ *config.AppConfig, pool *pgxpool.Pool) error {
		logger.InfoContext(ctx, "running database migrations")
		if err := bootstrap.RunMigrations(ctx, pool, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		return nil
	})
}

func runDBSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	if err := guardRemoteHost(cmd, cfg.Postgres.Host, dbAllowRemote, "seed audiences on the configured database"); err != nil {
		return err
	}

	return withDatabase(cmd, func(ctx context.Context, _ *config.AppConfig, pool *pgxpool.Pool) error {
		logger.InfoContext(ctx, "ensuring database migrations are current")
		if err := bootstrap.RunMigrations(ctx, pool, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		svc, err := service.NewAudienceService(service.AudienceServiceOptions{
			Repo:   data.NewAudienceRepo(pool, data.AudienceRepoOptions{Logger: logger}),
			Logger: logger,
		})
		if err != nil {
			return err
		}
		res, err := devseed.Run(ctx, svc, logger)
		if err != nil {
			return fmt.Errorf("seed audiences: %w", err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "audiences created: %d, already present: %d\n", res.Created, res.Existing)
		return err
	})
}

func withDatabase(cmd *cobra.Command, f func(context.Context, *config.AppConfig, *pgxpool.Pool) error) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	pool, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer pool.Close()

	return f(ctx, &cfg, pool)
}

func guardRemoteHost(cmd *cobra.Command, host string, allow bool, action string) error {
	if !isLikelyRemoteHost(host) {
		return nil
	}
	if !allow {
		return fmt.Errorf(
			"refusing to run against potentially remote database host %q; re-run with --allow-remote if this is intentional",
			host,
		)
	}
	return requireRemoteHostConfirmation(cmd.InOrStdin(), cmd.ErrOrStderr(), action, host)
}

func isLikelyRemoteHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" || h == "localhost" || strings.HasSuffix(h, ".local") {
		return false
	}
	if ip := net.ParseIP(h); ip != nil {
		return !ip.IsLoopback()
	}
	return true
}

func requireRemoteHostConfirmation(in io.Reader, out io.Writer, action, host string) error {
	if _, err := fmt.Fprintf(out,
		"\nWARNING: database host %q does not look like a local address.\nThis operation will %s.\nType %q to continue or press enter to abort: ",
		host, action, host,
	); err != nil {
		return fmt.Errorf("print remote host warning: %w", err)
	}
	resp, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}
	if strings.TrimSpace(resp) != host {
		return errors.New("aborted by user")
	}
	return nil
}
