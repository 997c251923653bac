package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/pawpal/petmail/config"
	"github.com/pawpal/petmail/internal/database"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/repository"
	"github.com/pawpal/petmail/server"
	"github.com/pawpal/petmail/services/idempotency"
)

func main() {
	app := &cli.App{
		Name:  "petmail",
		Usage: "turns vet emails into pet health records",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: migrate,
			},
			{
				Name:   "server",
				Usage:  "Start the application server",
				Action: serve,
			},
			{
				Name:   "purge",
				Usage:  "Delete completed idempotency records past retention and exit",
				Action: purge,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, *gorm.DB, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, cli.Exit("config initialization failed: "+err.Error(), 1)
	}

	db, err := database.InitDatabase(cfg.DatabaseConfig)
	if err != nil {
		return nil, nil, cli.Exit("database initialization failed: "+err.Error(), 1)
	}
	return cfg, db, nil
}

func migrate(_ *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	if err := repository.MigrateDB(cfg.DatabaseConfig, db); err != nil {
		return cli.Exit("database migration failed: "+err.Error(), 1)
	}
	log.Println("Database migration completed successfully")
	return nil
}

func serve(_ *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("petmail starting up...")

	srv, err := server.NewServer(cfg, db)
	if err != nil {
		return cli.Exit("server setup failed: "+err.Error(), 1)
	}
	if err := srv.Run(); err != nil {
		return cli.Exit("server startup failed: "+err.Error(), 1)
	}

	log.Println("Shutdown complete")
	return nil
}

func purge(c *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()
	defer appLogger.Sync() // nolint: errcheck

	repos := repository.InitRepositories(db)
	janitor := idempotency.NewJanitor(repos.ProcessedEmailRepository, cfg.IdempotencyConfig.Retention, cfg.IdempotencyConfig.StaleAfter, appLogger)

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := janitor.Purge(ctx); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if _, err := janitor.ReportStale(ctx); err != nil {
		appLogger.Warnf("stale lock report failed: %v", err)
	}
	return nil
}
