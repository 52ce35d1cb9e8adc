package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ppiankov/clinsum/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func renderDoc(t *testing.T, v View, refresh int) *html.Node {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, v, refresh))

	doc, err := html.Parse(&buf)
	require.NoError(t, err)
	return doc
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// findAll collects element nodes under n matching pred
func findAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && pred(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func byClass(n *html.Node, class string) []*html.Node {
	return findAll(n, func(n *html.Node) bool { return hasClass(n, class) })
}

func byTag(n *html.Node, tag string) []*html.Node {
	return findAll(n, func(n *html.Node) bool { return n.Data == tag })
}

func textOf(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}

func TestWriteHTML_ChestPainScenario(t *testing.T) {
	st := session.State{Phase: session.Succeeded, Note: "Patient reports chest pain for 2 days. Denies fever.", Summary: chestPain()}
	doc := renderDoc(t, Build(st, ExportStatus{}), 2)

	banners := byClass(doc, "emergency-banner")
	require.Len(t, banners, 1)
	reason := byClass(banners[0], "reason")
	require.Len(t, reason, 1)
	assert.Equal(t, "Chest pain", textOf(reason[0]))

	var negations *html.Node
	for _, g := range byClass(doc, "insight-group") {
		if attr(g, "data-title") == "Negations" {
			negations = g
		}
	}
	require.NotNil(t, negations)
	items := byTag(negations, "li")
	require.Len(t, items, 1)
	assert.Equal(t, "denies fever", textOf(items[0]))

	assert.Len(t, byClass(doc, "badge-icd"), 1)
	assert.Len(t, byClass(doc, "badge-cpt"), 0)
	assert.Contains(t, textOf(doc), NoCPTCodes)

	exports := byClass(doc, "export")
	require.Len(t, exports, 1)
	assert.Equal(t, ExportLabel, textOf(exports[0]))

	assert.Empty(t, findAll(doc, func(n *html.Node) bool { return n.Data == "meta" && attr(n, "http-equiv") == "refresh" }))
}

func TestWriteHTML_NoBannerWithoutEmergency(t *testing.T) {
	s := chestPain()
	s.IsEmergency = false
	s.EmergencyReason = ""
	doc := renderDoc(t, Build(session.State{Phase: session.Succeeded, Summary: s}, ExportStatus{}), 2)

	assert.Empty(t, byClass(doc, "emergency-banner"))
	assert.NotContains(t, textOf(doc), "Emergency Symptom Flagged")
}

func TestWriteHTML_LoadingRefreshesAndDisablesInput(t *testing.T) {
	doc := renderDoc(t, Build(session.State{Phase: session.Loading, Note: "note"}, ExportStatus{}), 3)

	metas := findAll(doc, func(n *html.Node) bool { return n.Data == "meta" && attr(n, "http-equiv") == "refresh" })
	require.Len(t, metas, 1)
	assert.Equal(t, "3", attr(metas[0], "content"))

	textareas := byTag(doc, "textarea")
	require.Len(t, textareas, 1)
	_, disabled := lookupAttr(textareas[0], "disabled")
	assert.True(t, disabled)

	buttons := byClass(doc, "primary")
	require.Len(t, buttons, 1)
	assert.Equal(t, ProcessingLabel, textOf(buttons[0]))
	assert.Empty(t, byClass(doc, "export"))
	assert.Len(t, byClass(doc, "loading"), 1)
}

func TestWriteHTML_ErrorAndEmptyViews(t *testing.T) {
	doc := renderDoc(t, Build(session.State{Phase: session.Failed, Err: "Please enter a clinical note to summarize."}, ExportStatus{}), 2)
	views := byClass(doc, "error-view")
	require.Len(t, views, 1)
	assert.Contains(t, textOf(views[0]), ErrorTitle)
	assert.Contains(t, textOf(views[0]), "Please enter a clinical note to summarize.")
	assert.Empty(t, byClass(doc, "summary"))

	doc = renderDoc(t, Build(session.State{}, ExportStatus{}), 2)
	placeholders := byClass(doc, "placeholder")
	require.Len(t, placeholders, 1)
	assert.Contains(t, textOf(placeholders[0]), EmptyTitle)
}

func TestWriteHTML_ExportErrorShown(t *testing.T) {
	st := session.State{Phase: session.Succeeded, Summary: chestPain()}
	doc := renderDoc(t, Build(st, ExportStatus{Err: "encode png: short write"}), 2)

	banners := byClass(doc, "export-error")
	require.Len(t, banners, 1)
	assert.Contains(t, textOf(banners[0]), "encode png: short write")
}

func TestWriteHTML_EscapesNote(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, Build(session.State{Note: "<script>alert(1)</script>"}, ExportStatus{}), 2))
	assert.NotContains(t, buf.String(), "<script>alert(1)</script>")
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
