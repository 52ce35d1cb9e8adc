package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// NoteExtensions are the file types a note can be loaded from
var NoteExtensions = []string{".txt", ".html", ".htm"}

// IsNoteFile reports whether path has a supported note extension
func IsNoteFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range NoteExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ReadNote loads a clinical note from disk. HTML exports from EHR systems
// are reduced to their visible text; anything else is taken verbatim.
func ReadNote(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read note: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("read note %s: not valid UTF-8 text", filepath.Base(path))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return NoteFromHTML(data)
	default:
		return string(data), nil
	}
}

// NoteFromHTML extracts the visible text of an HTML document, keeping one
// line per block element so the note's structure survives.
func NoteFromHTML(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html note: %w", err)
	}
	return extractVisibleText(doc), nil
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true,
	"table": true, "ul": true, "ol": true, "pre": true, "blockquote": true,
}

// extractVisibleText collects text nodes, skipping scripts and styles
func extractVisibleText(n *html.Node) string {
	var lines []string
	var current strings.Builder

	flush := func() {
		line := strings.Join(strings.Fields(current.String()), " ")
		if line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head", "template":
				return
			}
		}

		if n.Type == html.TextNode {
			current.WriteString(n.Data)
		}

		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}

	walk(n)
	flush()
	return strings.Join(lines, "\n")
}
