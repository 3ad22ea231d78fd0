// Package workers contains queue consumers that run outside the request path.
package workers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/database"
	logpkg "github.com/taskpilot/taskpilot/internal/logger"
	"github.com/taskpilot/taskpilot/internal/queue"
)

// MessageWriter consumes persist_message jobs and writes chat messages to
// storage. Persistence runs off the request path so a slow write never
// delays the reply to the user.
type MessageWriter struct {
	messages      database.MessageStore
	conversations database.ConversationStore
	logger        *zap.Logger
}

// NewMessageWriter creates a new message writer
func NewMessageWriter(messages database.MessageStore, conversations database.ConversationStore, logger *zap.Logger) *MessageWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageWriter{
		messages:      messages,
		conversations: conversations,
		logger:        logger,
	}
}

// ProcessPersistMessageJob writes the job's message to storage and bumps the
// conversation's updated_at.
func (w *MessageWriter) ProcessPersistMessageJob(ctx context.Context, job *queue.Job) error {
	msg := job.Message
	if msg == nil {
		return fmt.Errorf("message payload is required for persist_message job")
	}
	if msg.UserID != job.UserID {
		return fmt.Errorf("message does not belong to job user")
	}

	if err := w.messages.Insert(ctx, msg); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	// Touching the conversation is best effort. The message is already stored.
	if err := w.conversations.Touch(ctx, msg.ConversationID); err != nil {
		w.logger.Warn("conversation_touch_failed",
			zap.String("conversation_id", msg.ConversationID.String()),
			zap.Error(err))
	}

	w.logger.Debug("message_persisted",
		zap.String("message_id", msg.ID.String()),
		zap.String("user_id", logpkg.SanitizeUserID(msg.UserID.String())),
		zap.String("conversation_id", msg.ConversationID.String()),
		zap.String("role", string(msg.Role)))
	return nil
}

// ProcessJob processes a job based on its type
func (w *MessageWriter) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if job.IsExpired() {
		w.logger.Warn("job_expired",
			zap.String("job_id", logpkg.SanitizeUserID(job.ID.String())),
			zap.String("user_id", logpkg.SanitizeUserID(job.UserID.String())),
			zap.Timep("not_after", job.NotAfter))
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Error("job_nack_failed", zap.Error(nackErr))
		}
		return nil
	}

	switch job.Type {
	case queue.JobTypePersistMessage:
		if err := w.ProcessPersistMessageJob(ctx, job); err != nil {
			return w.handleJobError(msg, job, err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown job type, send to DLQ
			w.logger.Error("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError retries failed writes until MaxRetries, then dead-letters.
func (w *MessageWriter) handleJobError(msg queue.MessageInterface, job *queue.Job, err error) error {
	if job.CanRetry() {
		job.IncrementRetry()
		w.logger.Warn("persist_message_retry",
			zap.String("job_id", logpkg.SanitizeUserID(job.ID.String())),
			zap.Int("attempt", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Error(err))
		if nackErr := msg.Nack(true); nackErr != nil {
			w.logger.Error("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	w.logger.Error("persist_message_dead_lettered",
		zap.String("job_id", logpkg.SanitizeUserID(job.ID.String())),
		zap.Int("retries", job.MaxRetries),
		zap.Error(err))
	if nackErr := msg.Nack(false); nackErr != nil {
		w.logger.Error("job_nack_failed", zap.Error(nackErr))
	}
	return fmt.Errorf("job failed (max retries): %w", err)
}
