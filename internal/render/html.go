package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("clinsum").ParseFS(templateFS, "templates/*.html"))

type pageData struct {
	View    View
	Refresh int
}

// WriteHTML renders the full page for v. While loading, the page asks the
// browser to reload every refreshSeconds so the settled result shows up.
func WriteHTML(w io.Writer, v View, refreshSeconds int) error {
	data := pageData{View: v}
	if v.Kind == KindLoading && refreshSeconds > 0 {
		data.Refresh = refreshSeconds
	}

	if err := templates.ExecuteTemplate(w, "page", data); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}
