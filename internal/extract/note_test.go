package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNoteFromHTML(t *testing.T) {
	doc := `
	<html>
	<head><title>Encounter</title><style>p { color: red; }</style></head>
	<body>
		<h2>HPI</h2>
		<p>Patient reports chest pain   for 2 days.</p>
		<p>Denies <b>fever</b>.</p>
		<script>track("note-view")</script>
		<ul><li>BP 150/95</li><li>HR 102</li></ul>
	</body>
	</html>
	`

	text, err := NoteFromHTML([]byte(doc))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	want := "HPI\nPatient reports chest pain for 2 days.\nDenies fever.\nBP 150/95\nHR 102"
	if text != want {
		t.Errorf("Unexpected text:\n%q\nwant\n%q", text, want)
	}
	if strings.Contains(text, "track") || strings.Contains(text, "color") || strings.Contains(text, "Encounter") {
		t.Error("Expected script, style and head content to be skipped")
	}
}

func TestReadNote(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(txt, []byte("  Pt c/o headache x3d.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadNote(txt)
	if err != nil {
		t.Fatalf("ReadNote failed: %v", err)
	}
	if got != "  Pt c/o headache x3d.\n" {
		t.Errorf("Plain text notes must be read verbatim, got %q", got)
	}

	htm := filepath.Join(dir, "b.HTM")
	if err := os.WriteFile(htm, []byte("<p>Denies fever.</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = ReadNote(htm)
	if err != nil {
		t.Fatalf("ReadNote failed: %v", err)
	}
	if got != "Denies fever." {
		t.Errorf("Unexpected HTML note text %q", got)
	}

	bin := filepath.Join(dir, "c.txt")
	if err := os.WriteFile(bin, []byte{0xff, 0xfe, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadNote(bin); err == nil {
		t.Error("Expected error for invalid UTF-8")
	}

	if _, err := ReadNote(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestIsNoteFile(t *testing.T) {
	tests := map[string]bool{
		"note.txt":   true,
		"NOTE.TXT":   true,
		"visit.html": true,
		"visit.htm":  true,
		"note.json":  false,
		"note.pdf":   false,
		"README":     false,
	}
	for path, want := range tests {
		if got := IsNoteFile(path); got != want {
			t.Errorf("IsNoteFile(%q) = %v, want %v", path, got, want)
		}
	}
}
