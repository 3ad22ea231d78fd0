package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskpilot/taskpilot/internal/models"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypePersistMessage is a job for writing one chat message to storage
	JobTypePersistMessage JobType = "persist_message"
)

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID       `json:"id"`
	Type       JobType         `json:"type"`
	UserID     uuid.UUID       `json:"user_id"`
	Message    *models.Message `json:"message,omitempty"`    // Payload for persist_message jobs
	NotBefore  *time.Time      `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter   *time.Time      `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	Metadata   map[string]any  `json:"metadata,omitempty"`   // Job-specific data
	CreatedAt  time.Time       `json:"created_at"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
}

// NewPersistMessageJob creates a job that persists msg asynchronously.
func NewPersistMessageJob(msg *models.Message) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       JobTypePersistMessage,
		UserID:     msg.UserID,
		Message:    msg,
		Metadata:   make(map[string]any),
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: 3,
	}
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()

	// Check NotBefore
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}

	// Check NotAfter
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}

	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}

	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
