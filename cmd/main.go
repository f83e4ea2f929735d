package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/KAsare1/commonthread-server/cmd/api"
	"github.com/KAsare1/commonthread-server/cmd/config"
	"github.com/KAsare1/commonthread-server/cmd/logging"
	"github.com/KAsare1/commonthread-server/cmd/utils"
	"github.com/KAsare1/commonthread-server/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "commonthread",
		Short:        "CommonThread volunteer matching server",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(
		&cobra.Command{Use: "serve", Short: "Start the API server", RunE: runServe},
		&cobra.Command{Use: "migrate", Short: "Migrate tables and create upload directories", RunE: runMigrate},
		clearDBCmd(),
	)
	return root
}

// setup loads configuration and opens the logger and the database.
func setup() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.New(cfg.Development())
	if err != nil {
		return nil, nil, nil, err
	}
	conn, err := db.NewPSQLStorage(cfg.DBURL)
	if err != nil {
		logger.Error("Database initialization error", zap.Error(err))
		return nil, nil, nil, err
	}
	logger.Info("Connected to the database")
	return cfg, logger, conn, nil
}

func teardown(logger *zap.Logger, conn *gorm.DB) {
	if err := db.Close(conn); err != nil {
		logger.Warn("Error closing database", zap.Error(err))
	} else {
		logger.Info("Database connection closed")
	}
	_ = logger.Sync()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, conn, err := setup()
	if err != nil {
		return err
	}
	defer teardown(logger, conn)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := api.NewApiServer(cfg, conn, logger).Run(ctx); err != nil {
		logger.Error("Server error", zap.Error(err))
		return err
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, conn, err := setup()
	if err != nil {
		return err
	}
	defer teardown(logger, conn)

	if err := db.Migrate(conn, logger); err != nil {
		logger.Error("Migration error", zap.Error(err))
		return err
	}

	dir := filepath.Join(cfg.UploadDir, utils.ImageSubdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create directory %s: %w", dir, err)
	}
	logger.Info("Migrations completed", zap.String("upload_dir", dir))
	return nil
}

func clearDBCmd() *cobra.Command {
	var yes bool
	var tables []string
	cmd := &cobra.Command{
		Use:   "clear-db",
		Short: "Drop tables (all of them unless --tables is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, unknown := db.LookupTables(tables)
			if len(unknown) > 0 {
				return fmt.Errorf("unknown tables: %s", strings.Join(unknown, ", "))
			}

			if !yes {
				fmt.Fprint(cmd.OutOrStdout(), "Are you sure you want to clear the database? (yes/no): ")
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if strings.TrimSpace(answer) != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "Database clearing cancelled.")
					return nil
				}
			}

			_, logger, conn, err := setup()
			if err != nil {
				return err
			}
			defer teardown(logger, conn)

			if err := db.Drop(conn, logger, selected); err != nil {
				return err
			}
			logger.Info("Database cleared")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().StringSliceVar(&tables, "tables", nil, "comma separated table names, e.g. Review,Favorite")
	return cmd
}

