package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/passprotect/internal/apperr"
	"github.com/iudanet/passprotect/pkg/api"
)

// sendJSON отправляет JSON ответ
func sendJSON(w http.ResponseWriter, logger *slog.Logger, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// SendError отправляет JSON ответ с ошибкой
func SendError(w http.ResponseWriter, logger *slog.Logger, code, message string, statusCode int) {
	sendJSON(w, logger, api.ErrorResponse{Error: code, Message: message}, statusCode)
}

// WriteError renders err by its kind. Internal detail never reaches the body.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code, status := errorStatus(apperr.KindOf(err))
	SendError(w, logger, code, apperr.PublicMessage(err), status)
}

func errorStatus(kind apperr.Kind) (string, int) {
	switch kind {
	case apperr.KindAuthentication:
		return api.CodeAuthentication, http.StatusUnauthorized
	case apperr.KindTokenExpired:
		return api.CodeTokenExpired, http.StatusUnauthorized
	case apperr.KindTokenInvalid:
		return api.CodeTokenInvalid, http.StatusUnauthorized
	case apperr.KindAuthorization:
		return api.CodeAuthorization, http.StatusForbidden
	case apperr.KindValidation:
		return api.CodeValidation, http.StatusBadRequest
	case apperr.KindNotFound:
		return api.CodeNotFound, http.StatusNotFound
	default:
		return api.CodeInternal, http.StatusInternalServerError
	}
}
