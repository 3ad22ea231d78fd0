package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot/internal/models"
)

// MessageRepository handles conversation message database operations
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Insert persists a single conversation message
func (r *MessageRepository) Insert(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, user_id, role, content, tool_calls, tool_call_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	var toolCallsJSON []byte
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("failed to marshal tool calls: %w", err)
		}
		toolCallsJSON = data
	}

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	err := r.db.QueryRowContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.UserID,
		msg.Role,
		msg.Content,
		toolCallsJSON,
		nullString(msg.ToolCallID),
		createdAt,
	).Scan(&msg.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// ListByConversation returns a conversation's messages in chronological
// order, limited to the most recent window when limit is positive.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_id, user_id, role, content, tool_calls, tool_call_id, created_at
		FROM (
			SELECT id, conversation_id, user_id, role, content, tool_calls, tool_call_id, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`

	if limit <= 0 {
		limit = 200
	}

	rows, err := r.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		var (
			toolCallsJSON []byte
			toolCallID    *string
		)

		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.UserID,
			&msg.Role,
			&msg.Content,
			&toolCallsJSON,
			&toolCallID,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		if len(toolCallsJSON) > 0 {
			if err := json.Unmarshal(toolCallsJSON, &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool calls: %w", err)
			}
		}
		if toolCallID != nil {
			msg.ToolCallID = *toolCallID
		}

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// CountForUserSince counts a user's conversational traffic since a point in
// time. Only user and assistant turns count; tool results and system
// prompts are bookkeeping, not conversation.
func (r *MessageRepository) CountForUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE user_id = $1 AND created_at >= $2 AND role IN ('user', 'assistant')
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return count, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
