package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Stopper reports whether the process has been asked to shut down.
type Stopper interface {
	ShouldStop() bool
}

// Handler serves the service status endpoints.
type Handler struct {
	service string
	stopper Stopper

	clock     func() time.Time
	startedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler reporting on service and the shutdown state of stopper.
func NewHandler(service string, stopper Stopper, opts ...HandlerOption) *Handler {
	h := &Handler{
		service: service,
		stopper: stopper,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.startedAt = h.clock()
	return h
}

// handleHealth fails once shutdown has been requested so load balancers
// stop routing to the instance while it drains.
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	status := http.StatusOK
	if h.stopping() {
		resp.Status = "stopping"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	resp := statusResponse{
		Service:           h.service,
		StartedAt:         h.startedAt,
		UptimeSeconds:     int64(now.Sub(h.startedAt).Seconds()),
		ShutdownRequested: h.stopping(),
		RequestID:         requestIDFromContext(r.Context()),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) stopping() bool {
	return h.stopper != nil && h.stopper.ShouldStop()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type statusResponse struct {
	Service           string    `json:"service"`
	StartedAt         time.Time `json:"startedAt"`
	UptimeSeconds     int64     `json:"uptimeSeconds"`
	ShutdownRequested bool      `json:"shutdownRequested"`
	RequestID         string    `json:"requestId,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{
		Error:   message,
		Details: details,
	})
}
