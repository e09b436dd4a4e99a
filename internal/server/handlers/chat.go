package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/passprotect/internal/apperr"
	"github.com/iudanet/passprotect/internal/server/identity"
	"github.com/iudanet/passprotect/internal/server/orchestrator"
	"github.com/iudanet/passprotect/pkg/api"
)

const maxChatBody = 1 << 20

// Conversation runs one conversational turn for a caller.
type Conversation interface {
	Turn(ctx context.Context, id identity.Identity, message string, history []orchestrator.Message) (*orchestrator.TurnResult, error)
}

// ChatHandler обрабатывает POST /api/v1/chat
type ChatHandler struct {
	logger *slog.Logger
	conv   Conversation
}

// NewChatHandler создает новый handler для диалога
func NewChatHandler(logger *slog.Logger, conv Conversation) *ChatHandler {
	return &ChatHandler{
		logger: logger,
		conv:   conv,
	}
}

// Chat выполняет один ход диалога от имени пользователя из токена
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := identity.FromContext(ctx)
	if !ok {
		WriteError(w, h.logger, apperr.New(apperr.KindTokenInvalid, "handlers.chat", "no identity in context"))
		return
	}

	var req api.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		SendError(w, h.logger, api.CodeValidation, "invalid request body", http.StatusBadRequest)
		return
	}

	history := make([]orchestrator.Message, 0, len(req.History))
	for _, m := range req.History {
		history = append(history, orchestrator.Message{Role: m.Role, Content: m.Content})
	}

	result, err := h.conv.Turn(ctx, id, req.Message, history)
	if err != nil {
		if !apperr.IsKind(err, apperr.KindValidation) {
			h.logger.ErrorContext(ctx, "chat turn failed",
				slog.Int64("user_id", id.UserID),
				slog.Any("error", err),
			)
		}
		WriteError(w, h.logger, err)
		return
	}

	resp := api.ChatResponse{
		Response:  result.Response,
		ToolCalls: make([]api.ToolCallInfo, 0, len(result.ToolCalls)),
	}
	for _, c := range result.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, api.ToolCallInfo{
			Name:      c.Name,
			Arguments: c.Arguments,
			Error:     c.Error,
		})
	}

	sendJSON(w, h.logger, resp, http.StatusOK)
}
