package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/migrate"
)

const usage = `usage: migrate [flags] <command>

commands that touch the database:
  up                 apply every pending migration
  down               roll back the latest migration
  status             list migrations and whether they are applied
  to <version>       move the schema to YYYYMMDDHHMMSS

file commands:
  create <name>      add an empty migration under --dir
  validate           check file names and goose annotations

flags:
`

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	if err := run(cmd, args, *dir); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func run(cmd string, args []string, dir string) error {
	switch cmd {
	case "create":
		if len(args) != 1 {
			return fmt.Errorf("expected exactly one name")
		}
		path, err := migrate.CreateSQLMigration(orDefault(dir), args[0])
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "validate":
		if err := migrate.ValidateFS(migrate.SourceFor(dir)); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	case "up", "down", "status", "to":
	default:
		return fmt.Errorf("unknown command")
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": cmd})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	migrator, err := migrate.NewMigrator(sqlDB, migrate.SourceFor(dir))
	if err != nil {
		return err
	}

	switch cmd {
	case "up":
		n, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "applied", n), "migrations applied")
	case "down":
		return migrator.Down(ctx)
	case "status":
		return migrator.Status(ctx, os.Stdout)
	case "to":
		if len(args) != 1 {
			return fmt.Errorf("expected a target version")
		}
		return migrator.To(ctx, args[0])
	}
	return nil
}

func orDefault(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}
