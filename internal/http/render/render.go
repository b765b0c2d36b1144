// Package render is the bridge to the server-driven UI shell. A view is a
// component identifier plus a props payload; the shell consumes the JSON page
// envelope and decides how to draw it. Redirects carry one-shot flash notices.
package render

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/librasys/admin-portal/internal/http/flash"
)

// Page is the envelope handed to the UI shell.
type Page struct {
	Component string         `json:"component"`
	Props     map[string]any `json:"props"`
	URL       string         `json:"url"`
}

type Renderer struct {
	flash *flash.Store
}

func NewRenderer(flashes *flash.Store) *Renderer {
	return &Renderer{flash: flashes}
}

// Render writes the page envelope. Pending flash notices are consumed into
// props under "flash" unless the caller already supplied them.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, component string, props map[string]any) {
	if props == nil {
		props = map[string]any{}
	}
	if _, ok := props["flash"]; !ok {
		if notices := rd.flash.Pop(w, r); len(notices) > 0 {
			props["flash"] = notices
		}
	}
	page := Page{Component: component, Props: props, URL: r.URL.RequestURI()}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(page); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode page", "component", component, "error", err)
	}
}

// Redirect queues a flash notice and sends the shell to target with a
// see-other redirect.
func (rd *Renderer) Redirect(w http.ResponseWriter, r *http.Request, target, kind, message string) {
	if message != "" {
		if err := rd.flash.Add(w, r, kind, message); err != nil {
			slog.ErrorContext(r.Context(), "failed to queue flash notice", "error", err)
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Location forces a full page load at target instead of an in-shell visit,
// used after deletions so the next listing is fetched fresh. The shell
// recognizes the conflict status plus X-Location header.
func (rd *Renderer) Location(w http.ResponseWriter, r *http.Request, target, kind, message string) {
	if message != "" {
		if err := rd.flash.Add(w, r, kind, message); err != nil {
			slog.ErrorContext(r.Context(), "failed to queue flash notice", "error", err)
		}
	}
	w.Header().Set("X-Location", target)
	w.WriteHeader(http.StatusConflict)
}
