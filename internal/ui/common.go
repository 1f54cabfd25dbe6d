package ui

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jw6ventures/clinicgrid/internal/http/errors"
)

// redirect redirects to a path with query parameters.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, path string, params map[string]string) {
	q := url.Values{}
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	location := path
	if encoded := q.Encode(); encoded != "" {
		location += "?" + encoded
	}
	http.Redirect(w, r, location, http.StatusFound)
}

// render executes a template into a buffer first so a failing template
// never leaves a half-written page.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	tmpl, ok := h.templates[name]
	if !ok {
		errors.InternalError(w, r, fmt.Errorf("template not found"), fmt.Sprintf("template %q not found", name))
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		errors.InternalError(w, r, err, fmt.Sprintf("template render error for %q", name))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
