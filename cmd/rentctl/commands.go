package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"rentdesk/internal/database"
	"rentdesk/internal/services"
	"rentdesk/pkg/jwt"

	"github.com/spf13/cobra"
)

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := bootstrap(); err != nil {
				return err
			}
			defer database.Close()
			if err := database.Migrate(); err != nil {
				return fmt.Errorf("failed to migrate database: %v", err)
			}
			fmt.Println("Migration completed")
			return nil
		},
	}
}

// RollForwardCmd 手动执行月度滚动，不经过队列与去重标记
func RollForwardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollforward",
		Short: "Generate this month's rent charges for every active lease",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			defer database.Close()

			loc := cfg.Billing.Location()
			clock := services.NewClock(loc)
			if date, _ := cmd.Flags().GetString("date"); date != "" {
				t, err := time.ParseInLocation("2006-01-02", date, loc)
				if err != nil {
					return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
				}
				clock = services.FixedClock{T: t}
			}

			generator := services.NewRentGenerator(database.GetDB(), clock, cfg.Billing.DueDays)
			summary, err := generator.RollForwardAll(context.Background())
			if summary != nil {
				printJSON(summary)
			}
			return err
		},
	}

	cmd.Flags().String("date", "", "Run as of this date (YYYY-MM-DD)")
	return cmd
}

func LedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Print the payment ledger of a lease",
		RunE: func(cmd *cobra.Command, args []string) error {
			leaseID, _ := cmd.Flags().GetUint("lease")
			if leaseID == 0 {
				return fmt.Errorf("--lease is required")
			}
			month, _ := cmd.Flags().GetString("month")

			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			defer database.Close()

			ledger, err := services.NewLedgerService(database.GetDB(), services.NewClock(cfg.Billing.Location())).Ledger(leaseID, month)
			if err != nil {
				return err
			}
			printJSON(ledger)
			return nil
		},
	}

	cmd.Flags().Uint("lease", 0, "Lease ID")
	cmd.Flags().String("month", "", "Target month, e.g. Mar-2025 (default: current month)")
	return cmd
}

// TokenCmd 签发访问令牌，用于联调与运维脚本
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetUint("user")
			username, _ := cmd.Flags().GetString("username")
			admin, _ := cmd.Flags().GetBool("admin")
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}

			token, err := jwt.GetJWTManager().GenerateToken(userID, username, admin)
			if err != nil {
				return fmt.Errorf("failed to generate token: %v", err)
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().Uint("user", 0, "User ID")
	cmd.Flags().String("username", "", "Username")
	cmd.Flags().Bool("admin", false, "Grant admin access")
	return cmd
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
