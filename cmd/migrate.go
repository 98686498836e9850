package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"travelbook/config"
	"travelbook/db/pg"
	_ "travelbook/migration" // Import your migration package to register migrations

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/pressly/goose/v3"
)

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "migrate the order_rows table",
		Long:  `This command creates or rolls back the order_rows table of the pg backend by goose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			up, _ := cmd.Flags().GetBool("up")
			down, _ := cmd.Flags().GetBool("down")
			if down {
				up = false
			}

			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			setupLogging(cfg.LogFormat)

			if err := goose.SetDialect("postgres"); err != nil {
				return fmt.Errorf("failed to set goose dialect: %w", err)
			}

			db, err := sql.Open("postgres", pg.CreateDSN(cfg.DatabaseURL))
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			pingCtx, pingCancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer pingCancel()
			if err := db.PingContext(pingCtx); err != nil {
				return fmt.Errorf("failed to ping database: %w", err)
			}
			log.Println("Successfully connected to the database.")

			ctx := cmd.Context()
			if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", config.AppName)); err != nil {
				return fmt.Errorf("failed to create schema: %w", err)
			}

			migrationsDir := "migration"
			if up {
				log.Println("Running 'up' migrations...")
				if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
					return fmt.Errorf("goose up failed: %w", err)
				}
			} else {
				log.Println("Rolling back('down') the last migration...")
				if err := goose.DownContext(ctx, db, migrationsDir); err != nil {
					return fmt.Errorf("goose down failed: %w", err)
				}
			}
			log.Println("Goose operations completed.")
			log.Println("Checking migration status...")
			if err := goose.StatusContext(ctx, db, migrationsDir); err != nil {
				return fmt.Errorf("goose status failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolP("up", "u", true, "up the version of db")
	cmd.Flags().BoolP("down", "d", false, "down the version of db")

	return cmd
}
