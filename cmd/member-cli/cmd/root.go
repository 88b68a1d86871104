package cmd

import (
	"fmt"
	"os"

	"member-core/pkg/config"
	"member-core/pkg/database"
	"member-core/pkg/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "member-cli",
	Short: "Operations CLI for the membership settlement service",
	Long: `member-cli runs the settlement pipeline and membership housekeeping
jobs by hand and inspects payment state. It talks to the same database and
configuration as member-server.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// bootstrap loads config, initializes the logger and opens the database.
// Commands that need more (Redis, chain RPC, reserve) wire it themselves.
func bootstrap() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(cfg.App.Env)

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DB.Host, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.Port)
	db, err := database.ConnectPostgres(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect database: %w", err)
	}

	return cfg, db, nil
}
