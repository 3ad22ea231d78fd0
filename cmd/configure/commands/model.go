package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
	"github.com/spf13/cobra"

	"github.com/taskpilot/taskpilot/internal/agent"
	"github.com/taskpilot/taskpilot/internal/config"
	"github.com/taskpilot/taskpilot/internal/logger"
)

// NewModelCmd creates the model command
func NewModelCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "model",
		Short: "Check model provider connectivity",
		Long:  "Send a minimal completion request to verify credentials and reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			zapLogger, err := logger.NewDevelopmentLogger(debug)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() {
				_ = logger.Sync(zapLogger)
			}()

			client := agent.NewClient(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, zapLogger, debug)
			fmt.Printf("Model: %s\n", client.Model())

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			start := time.Now()
			resp, err := client.Complete(ctx, openai.ChatCompletionNewParams{
				Model: shared.ChatModel(client.Model()),
				Messages: []openai.ChatCompletionMessageParamUnion{
					openai.UserMessage("Reply with the single word: pong"),
				},
			})
			if err != nil {
				return fmt.Errorf("completion failed: %w", err)
			}

			fmt.Printf("Latency: %s\n", time.Since(start).Round(time.Millisecond))
			fmt.Printf("Response: %q\n", resp.Choices[0].Message.Content)
			fmt.Println("Model provider is reachable")

			return nil
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Log request and response details")

	return cmd
}
