package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/passprotect/internal/apperr"
	"github.com/iudanet/passprotect/internal/server/gateway"
	"github.com/iudanet/passprotect/internal/server/identity"
	"github.com/iudanet/passprotect/pkg/api"
)

const maxToolBody = 1 << 20

// ToolGateway lists and runs tools on behalf of a caller.
type ToolGateway interface {
	Tools(roles []string) []gateway.Tool
	Invoke(ctx context.Context, id identity.Identity, name string, args json.RawMessage) (*gateway.Result, error)
}

// ToolsHandler обрабатывает прямые вызовы инструментов
type ToolsHandler struct {
	logger  *slog.Logger
	gateway ToolGateway
}

// NewToolsHandler создает новый handler для инструментов
func NewToolsHandler(logger *slog.Logger, gw ToolGateway) *ToolsHandler {
	return &ToolsHandler{
		logger:  logger,
		gateway: gw,
	}
}

// List обрабатывает GET /api/v1/tools
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		WriteError(w, h.logger, apperr.New(apperr.KindTokenInvalid, "handlers.tools", "no identity in context"))
		return
	}

	tools := h.gateway.Tools(id.Roles)
	resp := api.ToolsResponse{Tools: make([]api.Tool, 0, len(tools))}
	for _, t := range tools {
		resp.Tools = append(resp.Tools, api.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	sendJSON(w, h.logger, resp, http.StatusOK)
}

// Invoke обрабатывает POST /api/v1/tools/{name}. Тело запроса - аргументы инструмента.
func (h *ToolsHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := identity.FromContext(ctx)
	if !ok {
		WriteError(w, h.logger, apperr.New(apperr.KindTokenInvalid, "handlers.invoke", "no identity in context"))
		return
	}

	args, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxToolBody))
	if err != nil {
		SendError(w, h.logger, api.CodeValidation, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.gateway.Invoke(ctx, id, chi.URLParam(r, "name"), args)
	if err != nil {
		if apperr.IsKind(err, apperr.KindStorage) || apperr.KindOf(err) == apperr.KindUnknown {
			h.logger.ErrorContext(ctx, "tool invocation failed",
				slog.String("tool", chi.URLParam(r, "name")),
				slog.Int64("user_id", id.UserID),
				slog.Any("error", err),
			)
		}
		WriteError(w, h.logger, err)
		return
	}

	sendJSON(w, h.logger, api.ToolResult{Text: result.Text, Payload: result.Payload}, http.StatusOK)
}
