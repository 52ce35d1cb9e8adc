package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInitWithOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput("debug", "json", &buf)
	defer InitWithOutput("info", "json", &bytes.Buffer{})

	WithFields(logrus.Fields{"attempt_id": "a1"}).Debug("Summary request started")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "Summary request started" || entry["attempt_id"] != "a1" || entry["level"] != "debug" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestInitWithOutput_LevelFallback(t *testing.T) {
	var buf bytes.Buffer

	t.Setenv("LOG_LEVEL", "warn")
	InitWithOutput("", "text", &buf)
	defer InitWithOutput("info", "json", &bytes.Buffer{})

	if Log.GetLevel() != logrus.WarnLevel {
		t.Errorf("expected LOG_LEVEL fallback, got %v", Log.GetLevel())
	}

	WithField("note", "a.txt").Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}

	InitWithOutput("nonsense", "text", &buf)
	if Log.GetLevel() != logrus.InfoLevel {
		t.Errorf("unknown level should fall back to info, got %v", Log.GetLevel())
	}

	WithError(errAssert("boom")).Error("failed")
	if !strings.Contains(buf.String(), "error=boom") {
		t.Errorf("expected text output with error field, got %q", buf.String())
	}
}

type errAssert string

func (e errAssert) Error() string { return string(e) }
