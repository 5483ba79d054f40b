package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/pflag"

	"github.com/luxora/storefront-api/internal/config"
)

type migrationLogger struct {
	log *slog.Logger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrationLogger) Verbose() bool { return true }

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	dsn := pflag.StringP("dsn", "d", "", "postgres DSN (defaults to DB_* settings)")
	path := pflag.StringP("migrations-path", "m", "migrations", "directory holding the .sql migrations")
	down := pflag.Bool("down", false, "roll back every migration")
	pflag.Parse()

	if *dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Error("load config", "error", err)
			os.Exit(1)
		}
		*dsn = cfg.DB.DSN()
	}

	if err := run(*dsn, *path, *down, log); err != nil {
		log.Error("migrate", "error", err)
		os.Exit(2)
	}
}

func run(dsn, path string, down bool, log *slog.Logger) error {
	m, err := migrate.New("file://"+path, pgx5URL(dsn))
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()
	m.Log = migrationLogger{log: log}

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("no migrations to apply")
		return nil
	}
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read version: %w", err)
	}
	log.Info("migrations applied", "version", version, "dirty", dirty, "down", down)
	return nil
}

// pgx5URL rewrites a postgres:// DSN to the scheme the pgx/v5 driver registers.
func pgx5URL(dsn string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}
