package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/agent"
	"github.com/taskpilot/taskpilot/internal/database"
	"github.com/taskpilot/taskpilot/internal/middleware"
	"github.com/taskpilot/taskpilot/internal/models"
	"github.com/taskpilot/taskpilot/internal/queue"
	"github.com/taskpilot/taskpilot/internal/services/quota"
	"github.com/taskpilot/taskpilot/internal/services/sanitize"
)

// historyLimit caps how many prior messages are replayed to the model per turn.
const historyLimit = 50

// persistTimeout bounds the synchronous fallback write when the queue is down.
const persistTimeout = 5 * time.Second

// ChatHandler handles conversational agent requests
type ChatHandler struct {
	sanitizer     *sanitize.Sanitizer
	quota         *quota.Checker
	conversations database.ConversationStore
	messages      database.MessageStore
	loop          *agent.Loop
	jobs          queue.JobQueue
	logger        *zap.Logger
}

// NewChatHandler creates a new chat handler. jobs may be nil, in which case
// messages are persisted synchronously.
func NewChatHandler(
	sanitizer *sanitize.Sanitizer,
	quotaChecker *quota.Checker,
	conversations database.ConversationStore,
	messages database.MessageStore,
	loop *agent.Loop,
	jobs queue.JobQueue,
	logger *zap.Logger,
) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		sanitizer:     sanitizer,
		quota:         quotaChecker,
		conversations: conversations,
		messages:      messages,
		loop:          loop,
		jobs:          jobs,
		logger:        logger,
	}
}

// RegisterRoutes registers chat routes
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.SendMessage).Methods("POST")
}

// ChatRequest represents one user turn
type ChatRequest struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversationId,omitempty"`
}

// ChatResponse is the successful turn payload
type ChatResponse struct {
	Response       string                 `json:"response"`
	ConversationID string                 `json:"conversationId"`
	Tasks          []models.TaskReference `json:"tasks"`
}

// SendMessage runs one conversation turn: sanitize, quota-check, agent loop,
// persist. The reply is returned as soon as the loop finishes; persistence
// happens off the response path.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if req.Message == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "message is required")
		return
	}
	if len(req.Message) > models.MaxMessageLength {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "message exceeds the maximum length")
		return
	}

	var conversationID *uuid.UUID
	if req.ConversationID != nil && *req.ConversationID != "" {
		parsed, err := uuid.Parse(*req.ConversationID)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "conversationId must be a valid UUID")
			return
		}
		conversationID = &parsed
	}

	// Rejection happens before the quota check so a blocked message never
	// consumes budget.
	cleaned, err := h.sanitizer.Sanitize(req.Message)
	if err != nil {
		var rejected *sanitize.RejectedContentError
		if errors.As(err, &rejected) {
			h.logger.Warn("chat_message_rejected",
				zap.String("user_id", user.ID.String()),
				zap.String("category", rejected.Category),
				zap.String("severity", string(rejected.Severity)))
			respondJSONError(w, http.StatusBadRequest, "Bad Request", rejected.Error())
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Message could not be processed")
		return
	}
	if cleaned == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "message is required")
		return
	}

	ctx := r.Context()

	decision := h.quota.Check(ctx, user.ID)
	if !decision.Allowed {
		h.respondQuotaExceeded(w, decision)
		return
	}

	conversation, err := h.conversations.GetOrCreate(ctx, conversationID, user.ID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load conversation")
		return
	}

	history, err := h.messages.ListByConversation(ctx, conversation.ID, historyLimit)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load conversation history")
		return
	}

	result, err := h.loop.Run(ctx, user.ID, history, cleaned)
	if err != nil {
		h.respondTurnError(w, err)
		return
	}

	h.persist(ctx, &models.Message{
		ID:             uuid.New(),
		ConversationID: conversation.ID,
		UserID:         user.ID,
		Role:           models.RoleUser,
		Content:        cleaned,
		CreatedAt:      time.Now().UTC(),
	})
	h.persist(ctx, &models.Message{
		ID:             uuid.New(),
		ConversationID: conversation.ID,
		UserID:         user.ID,
		Role:           models.RoleAssistant,
		Content:        result.Response,
		CreatedAt:      time.Now().UTC(),
	})

	tasks := result.Tasks
	if tasks == nil {
		tasks = []models.TaskReference{}
	}
	respondJSON(w, http.StatusOK, ChatResponse{
		Response:       result.Response,
		ConversationID: conversation.ID.String(),
		Tasks:          tasks,
	})
}

// respondTurnError maps loop failures onto the statuses callers retry against.
func (h *ChatHandler) respondTurnError(w http.ResponseWriter, err error) {
	switch {
	case agent.IsConfigurationError(err):
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "The assistant is not configured")
	case agent.IsTimeoutError(err):
		respondJSONError(w, http.StatusGatewayTimeout, "Gateway Timeout", "The assistant took too long to respond")
	case agent.IsRateLimitError(err) || agent.IsTransientError(err):
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "The assistant is temporarily unavailable")
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to process message")
	}
}

// respondQuotaExceeded reports the daily ceiling along with when it resets.
func (h *ChatHandler) respondQuotaExceeded(w http.ResponseWriter, decision quota.Decision) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	response := map[string]any{
		"success":   false,
		"error":     "Too Many Requests",
		"message":   "Daily message limit reached",
		"limit":     quota.DailyMessageLimit,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if decision.ResetsAt != nil {
		response["resetsAt"] = decision.ResetsAt.UTC().Format(time.RFC3339)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// persist enqueues a message for the background writer, falling back to a
// synchronous insert if the queue is unavailable. Failures are logged and
// swallowed; the reply has already been produced.
func (h *ChatHandler) persist(ctx context.Context, msg *models.Message) {
	if h.jobs != nil {
		err := h.jobs.Enqueue(ctx, queue.NewPersistMessageJob(msg))
		if err == nil {
			return
		}
		h.logger.Warn("persist_enqueue_failed",
			zap.String("conversation_id", msg.ConversationID.String()),
			zap.Error(err))
	}

	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := h.messages.Insert(insertCtx, msg); err != nil {
		h.logger.Error("message_persist_failed",
			zap.String("conversation_id", msg.ConversationID.String()),
			zap.String("role", string(msg.Role)),
			zap.Error(err))
	}
}
