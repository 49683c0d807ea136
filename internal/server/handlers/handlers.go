// Package handlers implements HTTP request handlers for the sensor API.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dwsmith1983/trashcan/internal/provider"
	"github.com/dwsmith1983/trashcan/pkg/types"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// Handlers contains all HTTP handler dependencies.
type Handlers struct {
	provider provider.Provider
	logger   *slog.Logger
}

// New creates a new Handlers instance.
func New(prov provider.Provider) *Handlers {
	return &Handlers{
		provider: prov,
		logger:   slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (h *Handlers) SetLogger(l *slog.Logger) {
	if l != nil {
		h.logger = l
	}
}

type successBody struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type failBody struct {
	Status string            `json:"status"`
	Data   map[string]string `json:"data"`
}

type errorBody struct {
	Status  string     `json:"status"`
	Code    types.Code `json:"code"`
	Message string     `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handlers) writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, successBody{Status: StatusSuccess, Data: data})
}

// writeFail reports a client-caused validation failure. It is not logged as an error.
func (h *Handlers) writeFail(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, failBody{
		Status: StatusFail,
		Data:   map[string]string{"message": message},
	})
}

// writeError logs the backend failure with its cause and returns only the
// code and client-safe message. Errors that carry no code are reported under
// fallback.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, fallback *types.Error, err error) {
	code, msg := fallback.Code, fallback.Message
	var opErr *types.Error
	if errors.As(err, &opErr) {
		code, msg = opErr.Code, opErr.Message
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), msg, "code", code, "error", err, "method", r.Method, "path", r.URL.Path)
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Status:  StatusError,
		Code:    code,
		Message: msg,
	})
}

// Index identifies the service.
func (h *Handlers) Index(w http.ResponseWriter, _ *http.Request) {
	h.writeSuccess(w, map[string]string{"message": "Trash Can Sensor API"})
}
