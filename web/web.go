// Package web renders the café page and serves its static assets.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/jxucoder/tomoru/chat"
	"github.com/jxucoder/tomoru/model"
	"github.com/jxucoder/tomoru/site"
)

//go:embed templates/*.html static/*
var assets embed.FS

// Page is the data behind one rendered page.
type Page struct {
	Site    *site.Site
	VisitID string
	Turn    model.ChatTurn

	// MaxInput is the chat input's maxlength. Zero omits the attribute.
	MaxInput int

	visible map[string]bool
}

// Visible reports a block's visibility flag. Unknown blocks are hidden.
func (p Page) Visible(block string) bool {
	return p.visible[block]
}

// Renderer renders pages from a fixed site.
type Renderer struct {
	site     *site.Site
	tmpl     *template.Template
	maxInput int
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithMaxInput sets the chat input's length limit to match the session's.
// Zero keeps chat.DefaultMaxRunes; negative values drop the limit.
func WithMaxInput(n int) RendererOption {
	return func(r *Renderer) {
		switch {
		case n < 0:
			r.maxInput = 0
		case n > 0:
			r.maxInput = n
		}
	}
}

// NewRenderer parses the embedded page template.
func NewRenderer(s *site.Site, opts ...RendererOption) (*Renderer, error) {
	tmpl, err := template.ParseFS(assets, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}
	r := &Renderer{site: s, tmpl: tmpl, maxInput: chat.DefaultMaxRunes}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Site returns the content being rendered.
func (r *Renderer) Site() *site.Site { return r.site }

// Render writes the page for a visit. Nothing is written on a template error.
func (r *Renderer) Render(w io.Writer, visitID string, visible map[string]bool, turn model.ChatTurn) error {
	var buf bytes.Buffer
	page := Page{Site: r.site, VisitID: visitID, Turn: turn, MaxInput: r.maxInput, visible: visible}
	if err := r.tmpl.ExecuteTemplate(&buf, "page.html", page); err != nil {
		return fmt.Errorf("rendering page: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Static serves the embedded script and stylesheet. Mount it with the
// "/static/" prefix stripped.
func Static() http.Handler {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
