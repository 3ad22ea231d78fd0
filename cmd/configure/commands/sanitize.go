package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskpilot/taskpilot/internal/services/sanitize"
)

// NewSanitizeCmd creates the sanitize command
func NewSanitizeCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "sanitize",
		Short: "Classify a message against the injection detectors",
		Long:  "Run a message through the sanitizer and report whether it would be accepted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("--message is required")
			}

			sanitizer, err := sanitize.New(nil)
			if err != nil {
				return fmt.Errorf("failed to build sanitizer: %w", err)
			}

			cleaned, err := sanitizer.Sanitize(message)
			if err != nil {
				var rejected *sanitize.RejectedContentError
				if errors.As(err, &rejected) {
					fmt.Println("Verdict: REJECTED")
					fmt.Printf("Category: %s\n", rejected.Category)
					fmt.Printf("Severity: %s\n", rejected.Severity)
					return nil
				}
				return fmt.Errorf("sanitize failed: %w", err)
			}

			fmt.Println("Verdict: ACCEPTED")
			fmt.Printf("Cleaned message: %q\n", cleaned)

			return nil
		},
	}

	cmd.Flags().StringVar(&message, "message", "", "Message to classify (required)")

	return cmd
}
