// Package web enthält die eingebetteten HTML-Vorlagen der öffentlichen Seiten.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.tmpl
var content embed.FS

// Templates parst alle Vorlagen. Namen entsprechen den Dateinamen (z.B. "download.tmpl").
func Templates() (*template.Template, error) {
	return template.New("").ParseFS(content, "templates/*.tmpl")
}
