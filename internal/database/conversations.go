package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot/internal/models"
)

// ErrConversationNotFound is returned when a conversation does not exist or
// belongs to another user.
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository handles conversation database operations
type ConversationRepository struct {
	db *DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create creates a new conversation for a user
func (r *ConversationRepository) Create(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	conv := &models.Conversation{
		ID:     uuid.New(),
		UserID: userID,
	}

	query := `
		INSERT INTO conversations (id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, conv.ID, conv.UserID, time.Now().UTC()).
		Scan(&conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

// GetByID retrieves a conversation by ID, scoped to its owner
func (r *ConversationRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Conversation, error) {
	query := `
		SELECT id, user_id, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND user_id = $2
	`

	conv := &models.Conversation{}
	err := r.db.QueryRowContext(ctx, query, id, userID).
		Scan(&conv.ID, &conv.UserID, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return conv, nil
}

// GetOrCreate resolves a chat request's conversation. A nil id starts a new
// conversation; an id the user does not own also starts a new one rather
// than leaking another user's history.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, id *uuid.UUID, userID uuid.UUID) (*models.Conversation, error) {
	if id != nil {
		conv, err := r.GetByID(ctx, *id, userID)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, ErrConversationNotFound) {
			return nil, err
		}
	}
	return r.Create(ctx, userID)
}

// Touch bumps a conversation's updated_at after a turn completes
func (r *ConversationRepository) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}
