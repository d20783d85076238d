package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/db"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|to|create|validate")
	name := flag.String("name", "", "migration name for -cmd=create")
	target := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=to")
	dir := flag.String("dir", migrate.SourceDir, "directory for -cmd=create")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := context.Background()

	// file-only commands run without config or a database
	switch *cmd {
	case "create":
		path, err := migrate.Create(*dir, *name, time.Now())
		exitOn(ctx, logg, "create migration", err)
		fmt.Println("created", path)
		return
	case "validate":
		exitOn(ctx, logg, "validate migrations", migrate.Validate(migrate.Migrations()))
		fmt.Println("migrations valid")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	exitOn(ctx, logg, "load config", err)
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn(ctx, logg, "connect database", err)
	defer func() { _ = dbClient.Close() }()

	if cfg.DB.Driver == config.DriverSQLite {
		if *cmd != "up" {
			exitOn(ctx, logg, "sqlite", fmt.Errorf("-cmd=%s is not supported for sqlite", *cmd))
		}
		exitOn(ctx, logg, "apply sqlite schema", db.ApplySQLiteSchema(ctx, dbClient.DB()))
		logg.Info(ctx, "sqlite schema applied")
		return
	}

	sqlDB, err := dbClient.DB().DB()
	exitOn(ctx, logg, "sql database", err)
	runner, err := migrate.NewRunner(sqlDB, nil)
	exitOn(ctx, logg, "goose", err)

	switch *cmd {
	case "up":
		applied, err := runner.Up(ctx)
		exitOn(ctx, logg, "migrate up", err)
		logg.Info(logg.WithField(ctx, "applied", applied), "migrations applied")
	case "down":
		version, err := runner.Down(ctx)
		exitOn(ctx, logg, "migrate down", err)
		logg.Info(logg.WithField(ctx, "version", version), "migration rolled back")
	case "status":
		statuses, err := runner.Status(ctx)
		exitOn(ctx, logg, "migration status", err)
		for _, st := range statuses {
			applied := "pending"
			if !st.AppliedAt.IsZero() {
				applied = st.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("%-40s %s\n", st.Source.Path, applied)
		}
	case "to":
		version, err := strconv.ParseInt(*target, 10, 64)
		exitOn(ctx, logg, "parse -version", err)
		exitOn(ctx, logg, "migrate to version", runner.To(ctx, version))
		logg.Info(logg.WithField(ctx, "version", version), "schema at target version")
	default:
		exitOn(ctx, logg, "flags", fmt.Errorf("unknown -cmd %q", *cmd))
	}
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, step+" failed", err)
	os.Exit(1)
}
