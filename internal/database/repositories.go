package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot/internal/models"
)

// TaskStore is the task persistence surface consumed by the agent tools and
// HTTP handlers. Defined here so callers can swap in fakes.
type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Task, error)
	List(ctx context.Context, userID uuid.UUID, filter TaskFilter) ([]*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	CountMatching(ctx context.Context, userID uuid.UUID, statusFilter *string) (int, error)
	CompleteAll(ctx context.Context, userID uuid.UUID, completed bool, statusFilter *string) (int64, error)
	DeleteAll(ctx context.Context, userID uuid.UUID, statusFilter *string) (int64, error)
	CountChainInstances(ctx context.Context, rootID uuid.UUID) (int, error)
}

// ConversationStore is the conversation persistence surface
type ConversationStore interface {
	Create(ctx context.Context, userID uuid.UUID) (*models.Conversation, error)
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Conversation, error)
	GetOrCreate(ctx context.Context, id *uuid.UUID, userID uuid.UUID) (*models.Conversation, error)
	Touch(ctx context.Context, id uuid.UUID) error
}

// MessageStore is the message persistence surface
type MessageStore interface {
	Insert(ctx context.Context, msg *models.Message) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error)
	CountForUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

var (
	_ TaskStore         = (*TaskRepository)(nil)
	_ ConversationStore = (*ConversationRepository)(nil)
	_ MessageStore      = (*MessageRepository)(nil)
)
