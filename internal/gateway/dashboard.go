// ABOUTME: HTML dashboard listing pending reviews with rendered markdown.
// ABOUTME: Serves GET /reviews from an embedded template.

package gateway

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/yuin/goldmark"

	"github.com/2389/relay-gateway/internal/ledger"
)

//go:embed templates/*.html
var templateFS embed.FS

type reviewItem struct {
	ID             int64
	RequesterID    string
	ConversationID string
	InputMessage   string
	Confidence     float64
	CreatedAt      string

	// Rendered is the generated response converted from markdown.
	Rendered template.HTML
}

type dashboardData struct {
	Title   string
	Reviews []reviewItem
}

// handleReviewDashboard handles GET /reviews.
func (g *Gateway) handleReviewDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	records, err := g.ledger.ListPending(r.Context(), ledger.DefaultListLimit)
	if err != nil {
		g.logger.Error("failed to list pending reviews", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data := dashboardData{Title: "Pending Reviews"}
	for _, rec := range records {
		data.Reviews = append(data.Reviews, reviewItem{
			ID:             rec.ID,
			RequesterID:    rec.RequesterID,
			ConversationID: rec.ConversationID,
			InputMessage:   rec.InputMessage,
			Confidence:     rec.Confidence,
			CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339),
			Rendered:       renderMarkdown(g, rec.GeneratedResponse),
		})
	}

	tmpl := template.Must(template.ParseFS(templateFS, "templates/reviews.html"))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		g.logger.Error("failed to render review dashboard", "error", err)
	}
}

// renderMarkdown converts a generated response to HTML for the dashboard.
func renderMarkdown(g *Gateway, md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		g.logger.Error("failed to convert markdown", "error", err)
		return template.HTML("<p>failed to render response</p>")
	}
	return template.HTML(buf.String())
}
