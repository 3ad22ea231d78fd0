package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/config"
	"github.com/taskpilot/taskpilot/internal/database"
	"github.com/taskpilot/taskpilot/internal/logger"
	"github.com/taskpilot/taskpilot/internal/queue"
	"github.com/taskpilot/taskpilot/internal/workers"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_worker", zap.Bool("debug_mode", debugMode))

	if cfg.RabbitMQURL == "" {
		zapLogger.Fatal("rabbitmq_url_not_set")
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("database_connect_failed", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("database_close_failed", zap.Error(err))
		}
	}()

	messageRepo := database.NewMessageRepository(db)
	conversationRepo := database.NewConversationRepository(db)

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
	if err != nil {
		zapLogger.Fatal("rabbitmq_connect_failed", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("rabbitmq_close_failed", zap.Error(err))
		}
	}()

	writer := workers.NewMessageWriter(messageRepo, conversationRepo, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("consume_start_failed", zap.Error(err))
	}

	zapLogger.Info("worker_consuming", zap.Int("prefetch", cfg.RabbitMQPrefetch))

	go consumeMessages(ctx, writer, msgChan, zapLogger)
	go drainErrors(ctx, errChan, zapLogger)

	<-sigChan
	zapLogger.Info("shutdown_signal_received")
	cancel()
	zapLogger.Info("worker_stopped")
}

// consumeMessages runs until the context is cancelled or the broker closes
// the delivery channel. Per-job retry and dead-letter decisions live in the
// writer; only unexpected failures surface here.
func consumeMessages(ctx context.Context, writer *workers.MessageWriter, msgChan <-chan *queue.Message, zapLogger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgChan:
			if !ok {
				zapLogger.Info("message_channel_closed")
				return
			}
			if err := writer.ProcessJob(ctx, msg); err != nil {
				job := msg.GetJob()
				zapLogger.Error("job_processing_failed",
					zap.Error(err),
					zap.String("job_id", logger.SanitizeUserID(job.ID.String())),
					zap.String("job_type", string(job.Type)),
				)
			}
		}
	}
}

func drainErrors(ctx context.Context, errChan <-chan error, zapLogger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errChan:
			if !ok {
				return
			}
			zapLogger.Error("queue_consumer_error", zap.Error(err))
		}
	}
}
