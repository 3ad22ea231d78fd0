package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/taskpilot/taskpilot/internal/config"
	"github.com/taskpilot/taskpilot/internal/database"
	"github.com/taskpilot/taskpilot/internal/services/quota"
)

// NewQuotaCmd creates the quota command
func NewQuotaCmd() *cobra.Command {
	var userIDStr string

	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show a user's remaining daily message budget",
		Long:  "Show how many messages a user has left in the current UTC day",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userIDStr == "" {
				return fmt.Errorf("--user is required")
			}
			userID, err := uuid.Parse(userIDStr)
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
				}
			}()

			messageRepo := database.NewMessageRepository(db)
			checker := quota.NewChecker(messageRepo, nil)

			decision := checker.Check(context.Background(), userID)

			fmt.Printf("User: %s\n", userID)
			fmt.Printf("Daily limit: %d\n", quota.DailyMessageLimit)
			fmt.Printf("Allowed: %t\n", decision.Allowed)
			fmt.Printf("Remaining: %d\n", decision.Remaining)
			if decision.ResetsAt != nil {
				fmt.Printf("Resets at: %s\n", decision.ResetsAt.UTC().Format(time.RFC3339))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&userIDStr, "user", "", "User ID to inspect (required)")

	return cmd
}
