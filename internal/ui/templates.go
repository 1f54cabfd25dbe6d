package ui

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"time"
)

//go:embed templates/*
var templateFS embed.FS

var templates = mustParseTemplates()

var funcMap = template.FuncMap{
	"px": func(v float64) string {
		return fmt.Sprintf("%.2fpx", v)
	},
	"pct": func(v float64) string {
		return fmt.Sprintf("%.4f%%", v)
	},
	"clock": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("15:04")
	},
}

func mustParseTemplates() map[string]*template.Template {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		panic(err)
	}

	base := template.Must(template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html"))

	sets := make(map[string]*template.Template)
	for _, file := range files {
		if file == "templates/base.html" {
			continue
		}

		set := template.Must(base.Clone())
		template.Must(set.ParseFS(templateFS, file))
		sets[file[len("templates/"):]] = set
	}

	return sets
}
