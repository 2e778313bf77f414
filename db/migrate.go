// Command migrate applies the schema migrations in db/migrations.
//
// Usage:
//
//	go run ./db up [-steps=N]
//	go run ./db down [-steps=N]
//	go run ./db force -version=N
//	go run ./db status
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	msg, err := run(os.Args[1:], defaultDeps())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(msg)
}

// migrator is the slice of migrate.Migrate this tool uses; tests substitute
// a fake so no Postgres is needed.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Version() (version uint, dirty bool, err error)
}

type deps struct {
	loadEnv     func(...string) error
	getenv      func(string) string
	openDB      func(driverName, dataSourceName string) (*sql.DB, error)
	newMigrator func(db *sql.DB) (migrator, error)
}

func defaultDeps() deps {
	return deps{
		loadEnv: godotenv.Load,
		getenv:  os.Getenv,
		openDB:  sql.Open,
		newMigrator: func(db *sql.DB) (migrator, error) {
			var driver migratedb.Driver
			driver, err := postgres.WithInstance(db, &postgres.Config{})
			if err != nil {
				return nil, fmt.Errorf("create migration driver: %w", err)
			}
			m, err := migrate.NewWithDatabaseInstance("file://db/migrations", "postgres", driver)
			if err != nil {
				return nil, fmt.Errorf("create migrate instance: %w", err)
			}
			return m, nil
		},
	}
}

type command struct {
	name    string
	steps   int
	version int
}

func parseArgs(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, fmt.Errorf("usage: migrate <up|down|force|status> [flags]")
	}
	c := command{name: args[0]}
	fs := flag.NewFlagSet("migrate "+c.name, flag.ContinueOnError)
	switch c.name {
	case "up", "down":
		fs.IntVar(&c.steps, "steps", 0, "number of migration steps (0 = all)")
	case "force":
		fs.IntVar(&c.version, "version", -1, "version to force (clears dirty state)")
	case "status":
	default:
		return command{}, fmt.Errorf("unknown command %q (want up, down, force or status)", c.name)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return command{}, err
	}
	if c.name == "force" && c.version < 0 {
		return command{}, fmt.Errorf("force requires -version=N")
	}
	return c, nil
}

func run(args []string, d deps) (string, error) {
	c, err := parseArgs(args)
	if err != nil {
		return "", err
	}

	if d.loadEnv != nil {
		_ = d.loadEnv()
	}
	databaseURL := ""
	if d.getenv != nil {
		databaseURL = d.getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL environment variable is required")
	}

	db, err := d.openDB("postgres", databaseURL)
	if err != nil {
		return "", fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	m, err := d.newMigrator(db)
	if err != nil {
		return "", err
	}
	return apply(m, c)
}

func apply(m migrator, c command) (string, error) {
	switch c.name {
	case "up":
		var err error
		if c.steps > 0 {
			err = m.Steps(c.steps)
		} else {
			err = m.Up()
		}
		if err == migrate.ErrNoChange {
			return "No migrations to apply", nil
		}
		if err != nil {
			return "", fmt.Errorf("migration up failed: %w", err)
		}
		return "Migration up completed", nil
	case "down":
		var err error
		if c.steps > 0 {
			err = m.Steps(-c.steps)
		} else {
			err = m.Down()
		}
		if err == migrate.ErrNoChange {
			return "No migrations to apply", nil
		}
		if err != nil {
			return "", fmt.Errorf("migration down failed: %w", err)
		}
		return "Migration down completed", nil
	case "force":
		if err := m.Force(c.version); err != nil {
			return "", fmt.Errorf("force version %d failed: %w", c.version, err)
		}
		return fmt.Sprintf("Forced database to version %d", c.version), nil
	case "status":
		v, dirty, err := m.Version()
		if err == migrate.ErrNilVersion {
			return "No migrations applied yet", nil
		}
		if err != nil {
			return "", fmt.Errorf("read migration version: %w", err)
		}
		if dirty {
			return fmt.Sprintf("Version %d (dirty)", v), nil
		}
		return fmt.Sprintf("Version %d", v), nil
	}
	return "", fmt.Errorf("unknown command %q", c.name)
}
