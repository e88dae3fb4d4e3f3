// ABOUTME: HTTP API handlers for chat, reviews, backends, tools, and events.
// ABOUTME: Maps router and ledger errors onto JSON status codes and SSE streams.

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2389/relay-gateway/internal/backend"
	"github.com/2389/relay-gateway/internal/ledger"
	"github.com/2389/relay-gateway/internal/notify"
	"github.com/2389/relay-gateway/internal/router"
	"github.com/2389/relay-gateway/internal/tools"
)

// ChatRequest is the JSON request body for POST /api/chat and
// POST /api/chat/stream.
type ChatRequest struct {
	RequesterID    string `json:"requester_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	Backend        string `json:"backend,omitempty"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	Status     string  `json:"status"`
	Response   string  `json:"response,omitempty"`
	ReviewID   int64   `json:"review_id,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ReviewResponse is one pending record in GET /api/reviews.
type ReviewResponse struct {
	ID                int64   `json:"id"`
	RequesterID       string  `json:"requesterId"`
	ConversationID    string  `json:"conversationId,omitempty"`
	InputMessage      string  `json:"inputMessage"`
	GeneratedResponse string  `json:"generatedResponse"`
	Confidence        float64 `json:"confidence"`
	CreatedAt         string  `json:"createdAt"`
}

// SubmitReviewRequest is the JSON request body for POST /api/reviews/{id}.
type SubmitReviewRequest struct {
	Approved       bool   `json:"approved"`
	EditedResponse string `json:"editedResponse,omitempty"`
}

// SubmitReviewResponse is the JSON response for POST /api/reviews/{id}.
type SubmitReviewResponse struct {
	Status        string `json:"status"`
	FinalResponse string `json:"finalResponse,omitempty"`
}

// ToolResponse is one entry in GET /api/tools.
type ToolResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema string `json:"input_schema,omitempty"`
}

// handleChat handles POST /api/chat.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := g.router.Route(r.Context(), g.routerRequest(req))
	if err != nil {
		g.sendRouteError(w, err)
		return
	}

	g.sendJSON(w, http.StatusOK, ChatResponse{
		Status:     string(result.Status),
		Response:   result.Response,
		ReviewID:   result.ReviewID,
		Confidence: result.Confidence,
	})
}

// handleChatStream handles POST /api/chat/stream. Chunks are forwarded as
// "text" SSE events; the stream ends with exactly one of "done", "error", or
// "canceled".
func (g *Gateway) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	s, desc, err := g.router.Stream(r.Context(), g.routerRequest(req), g.streamTimeout())
	if err != nil {
		g.sendRouteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	g.writeSSEEvent(w, "started", map[string]string{"backend": desc.Name})
	flusher.Flush()

	for chunk := range s.Chunks() {
		switch {
		case chunk.Err != nil:
			g.writeSSEEvent(w, "error", map[string]string{"error": chunk.Err.Error()})
		case chunk.Final:
			if r.Context().Err() != nil {
				g.writeSSEEvent(w, "canceled", map[string]string{})
			} else {
				g.writeSSEEvent(w, "done", map[string]string{})
			}
		default:
			g.writeSSEEvent(w, "text", map[string]string{"text": chunk.Text})
		}
		flusher.Flush()
	}
}

// handleListReviews handles GET /api/reviews.
func (g *Gateway) handleListReviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			g.sendJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	records, err := g.ledger.ListPending(r.Context(), limit)
	if err != nil {
		g.logger.Error("failed to list pending reviews", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	reviews := make([]ReviewResponse, 0, len(records))
	for _, rec := range records {
		reviews = append(reviews, ReviewResponse{
			ID:                rec.ID,
			RequesterID:       rec.RequesterID,
			ConversationID:    rec.ConversationID,
			InputMessage:      rec.InputMessage,
			GeneratedResponse: rec.GeneratedResponse,
			Confidence:        rec.Confidence,
			CreatedAt:         rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

// handleSubmitReview handles POST /api/reviews/{id}.
func (g *Gateway) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	idRaw := strings.TrimPrefix(r.URL.Path, "/api/reviews/")
	id, err := strconv.ParseInt(idRaw, 10, 64)
	if err != nil || id < 1 {
		g.sendJSONError(w, http.StatusBadRequest, "invalid review id")
		return
	}

	var req SubmitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := g.router.SubmitReview(r.Context(), id, req.Approved, req.EditedResponse)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "review record not found")
		return
	case errors.Is(err, ledger.ErrAlreadyResolved):
		g.sendJSONError(w, http.StatusConflict, "review record already resolved")
		return
	case err != nil:
		g.logger.Error("failed to submit review", "review_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.sendJSON(w, http.StatusOK, SubmitReviewResponse{
		Status:        string(rec.State),
		FinalResponse: rec.FinalResponse,
	})
}

// handleListBackends handles GET /api/backends.
func (g *Gateway) handleListBackends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"backends": g.backends.Descriptors()})
}

// handleEvents handles GET /api/events, streaming hub events as SSE. Slow
// consumers drop events rather than stalling the hub.
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events := make(chan notify.Event, 16)
	token := g.hub.Subscribe(func(e notify.Event) {
		select {
		case events <- e:
		default:
			g.logger.Warn("dropping event for slow SSE consumer", "type", e.Type)
		}
	})
	defer g.hub.Unsubscribe(token)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	g.writeSSEEvent(w, "connected", map[string]string{})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-events:
			g.writeSSEEvent(w, string(event.Type), map[string]int64{"record_id": event.RecordID})
			flusher.Flush()
		}
	}
}

// handleListTools handles GET /api/tools.
func (g *Gateway) handleListTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	list := g.tools.List()
	out := make([]ToolResponse, 0, len(list))
	for _, tool := range list {
		out = append(out, ToolResponse{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"tools": out})
}

// handleDispatchTool handles POST /api/tools/{name}. The request body is
// passed to the tool handler as raw JSON arguments.
func (g *Gateway) handleDispatchTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/tools/")
	if name == "" {
		g.sendJSONError(w, http.StatusBadRequest, "tool name is required")
		return
	}

	var input json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := g.tools.Dispatch(r.Context(), name, input)
	if errors.Is(err, tools.ErrToolNotFound) {
		g.sendJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		g.sendJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]string{"result": result})
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if at least one backend is available.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	available := 0
	for _, desc := range g.backends.Descriptors() {
		if desc.Available {
			available++
		}
	}
	if available == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no backends available"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d backends)", available)
}

// routerRequest converts an API chat request into a router request, applying
// the configured review policy.
func (g *Gateway) routerRequest(req ChatRequest) router.Request {
	return router.Request{
		RequesterID:         req.RequesterID,
		ConversationID:      req.ConversationID,
		Message:             req.Message,
		Backend:             req.Backend,
		ReviewEnabled:       g.config.Review.Enabled,
		ConfidenceThreshold: g.config.Review.ConfidenceThreshold,
	}
}

// sendRouteError maps router and backend errors onto HTTP status codes.
// Validation problems are the caller's fault; backend failures are upstream.
func (g *Gateway) sendRouteError(w http.ResponseWriter, err error) {
	var invalid *router.InvalidArgumentError
	var backendErr *backend.BackendError
	var noBackend *backend.NoBackendAvailableError

	switch {
	case errors.As(err, &invalid):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, backend.ErrUnknownBackend):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &backendErr), errors.As(err, &noBackend):
		g.sendJSONError(w, http.StatusBadGateway, err.Error())
	default:
		g.logger.Error("chat request failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeSSEEvent writes one Server-Sent Event.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// sendJSON writes a JSON response.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
