package ui

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestRedirect(t *testing.T) {
	h := &Handler{}

	tests := []struct {
		name   string
		path   string
		params map[string]string
		want   url.Values
	}{
		{name: "no params", path: "/day", params: nil, want: url.Values{}},
		{name: "with date", path: "/day", params: map[string]string{"date": "2024-03-04"}, want: url.Values{"date": {"2024-03-04"}}},
		{name: "empty values dropped", path: "/day", params: map[string]string{"date": "2024-03-04", "practitioner": ""}, want: url.Values{"date": {"2024-03-04"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.redirect(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.path, tt.params)

			if rec.Code != http.StatusFound {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusFound)
			}
			loc, err := url.Parse(rec.Header().Get("Location"))
			if err != nil {
				t.Fatalf("bad location: %v", err)
			}
			if loc.Path != tt.path {
				t.Errorf("path = %q, want %q", loc.Path, tt.path)
			}
			if loc.Query().Encode() != tt.want.Encode() {
				t.Errorf("query = %q, want %q", loc.Query().Encode(), tt.want.Encode())
			}
		})
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	h := &Handler{templates: map[string]*template.Template{}}
	rec := httptest.NewRecorder()

	h.render(rec, httptest.NewRequest(http.MethodGet, "/day", nil), "missing.html", nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestRenderFailureWritesNoPartialPage(t *testing.T) {
	broken := template.Must(template.New("broken.html").Parse(`<p>before</p>{{.Missing.Field}}`))
	h := &Handler{templates: map[string]*template.Template{"broken.html": broken}}
	rec := httptest.NewRecorder()

	h.render(rec, httptest.NewRequest(http.MethodGet, "/day", nil), "broken.html", struct{}{})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "before") {
		t.Errorf("partial template output leaked: %q", rec.Body.String())
	}
}
