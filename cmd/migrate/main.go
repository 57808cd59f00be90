package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/chrissnell/autocal/internal/log"
	"github.com/chrissnell/autocal/internal/storage/sqlite"
	"github.com/chrissnell/autocal/pkg/config"
	"github.com/chrissnell/autocal/pkg/migrate"
	_ "modernc.org/sqlite" // SQLite driver
)

func main() {
	var (
		dbDSN          = flag.String("dsn", "", "SQLite database file")
		schema         = flag.String("schema", "", "Embedded schema to migrate: config or history")
		migrationDir   = flag.String("dir", "", "Migration directory (used when -schema is not set)")
		migrationTable = flag.String("table", "schema_migrations", "Migration table name for -dir")
		command        = flag.String("command", "up", "Migration command: up, down, to, version, status")
		targetVersion  = flag.String("target", "", "Target version for down/to commands")
		debug          = flag.Bool("debug", false, "Turn on debugging output")
		helpFlag       = flag.Bool("help", false, "Show help")
	)

	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if *dbDSN == "" {
		fmt.Fprintf(os.Stderr, "Error: -dsn flag is required\n")
		showHelp()
		os.Exit(1)
	}

	if err := log.Init(*debug, log.FileOptions{}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	provider, err := selectProvider(*schema, *migrationDir, *migrationTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Open database connection
	db, err := sql.Open("sqlite", *dbDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test the connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, provider, log.Named("migrate"))

	// Execute command
	switch *command {
	case "up":
		err = migrator.MigrateUp(ctx)
	case "down", "to":
		target, perr := parseTarget(*targetVersion)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", perr)
			os.Exit(1)
		}
		if *command == "down" {
			err = migrator.MigrateDown(ctx, target)
		} else {
			err = migrator.MigrateTo(ctx, target)
		}
	case "version":
		version, err := migrator.GetCurrentVersion(ctx)
		if err != nil {
			log.Fatalf("Failed to get current version: %v", err)
		}
		fmt.Printf("Current version: %d\n", version)
		return
	case "status":
		err = showStatus(ctx, migrator)
		if err == nil {
			return
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Migration command failed: %v", err)
	}

	fmt.Println("Migration completed successfully")
}

func selectProvider(schema, dir, table string) (migrate.MigrationProvider, error) {
	switch schema {
	case "config":
		return config.Migrations(), nil
	case "history":
		return sqlite.Migrations(), nil
	case "":
		if dir == "" {
			return nil, fmt.Errorf("either -schema or -dir is required")
		}
		return migrate.NewFileProvider(dir, table), nil
	default:
		return nil, fmt.Errorf("unknown schema %q, use config or history", schema)
	}
}

func parseTarget(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("-target flag is required for down and to commands")
	}
	target, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid target version: %w", err)
	}
	return target, nil
}

func showStatus(ctx context.Context, migrator *migrate.Migrator) error {
	currentVersion, err := migrator.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	pending, err := migrator.GetPendingMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	fmt.Printf("Current version: %d\n", currentVersion)
	fmt.Printf("Pending migrations: %d\n", len(pending))

	if len(pending) > 0 {
		fmt.Println("\nPending migrations:")
		for _, migration := range pending {
			fmt.Printf("  %d: %s\n", migration.Version, migration.Name)
		}
	}

	return nil
}

func showHelp() {
	fmt.Println("Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -dsn string        SQLite database file (required)")
	fmt.Println("  -schema string     Embedded schema: config or history")
	fmt.Println("  -dir string        Migration directory when -schema is not set")
	fmt.Println("  -table string      Migration table name for -dir (default: schema_migrations)")
	fmt.Println("  -command string    Migration command (default: up)")
	fmt.Println("  -target string     Target version for down/to commands")
	fmt.Println("  -help              Show this help message")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                 Apply all pending migrations")
	fmt.Println("  down               Roll back to target version")
	fmt.Println("  to                 Migrate to specific version (up or down)")
	fmt.Println("  version            Show current migration version")
	fmt.Println("  status             Show migration status")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrate -dsn history.db -schema history -command up")
	fmt.Println("  migrate -dsn config.db -schema config -command status")
	fmt.Println("  migrate -dsn config.db -schema config -command down -target 0")
}
