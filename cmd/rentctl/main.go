package main

import (
	"fmt"
	"os"

	"rentdesk/internal/database"
	"rentdesk/pkg/config"
	"rentdesk/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rentctl",
		Short: "rentdesk 运维命令行",
	}

	rootCmd.AddCommand(
		MigrateCmd(),
		SeedCmd(),
		RollForwardCmd(),
		LedgerCmd(),
		TokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap 加载配置、日志与数据库连接
func bootstrap() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}
	if err := logger.Initialize(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %v", err)
	}
	if err := database.Initialize(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}
	return cfg, nil
}
