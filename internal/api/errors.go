package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
	"go.uber.org/zap"
)

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

// respondWithError writes err in the {"error":{...}} envelope. Errors outside
// the domain taxonomy are reported as a bare 500; details are withheld in
// production.
func (h *Handler) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	payload := errorPayload{Code: "INTERNAL", Message: "Internal Server Error"}

	var de *domain.Error
	if errors.As(err, &de) {
		status = de.Status
		payload = errorPayload{Code: de.Code, Message: de.Message, Details: de.Details}
	}

	fields := []zap.Field{
		zap.String("request_id", RequestIDFrom(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("code", payload.Code),
		zap.Error(err),
	}
	if len(payload.Details) > 0 {
		fields = append(fields, zap.ByteString("details", payload.Details))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Warn("request rejected", fields...)
	}

	if h.production {
		payload.Details = nil
	}
	respondWithJSON(w, status, errorBody{Error: payload})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, errorBody{Error: errorPayload{Code: code, Message: message}})
}

func (h *Handler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "HTTP_404", fmt.Sprintf("Route %s %s not found", r.Method, r.URL.Path))
}

func (h *Handler) MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "HTTP_405", fmt.Sprintf("Method %s not allowed on %s", r.Method, r.URL.Path))
}
