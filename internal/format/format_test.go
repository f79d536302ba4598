package format

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestWriteJSON_Normal(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]int{"known": 42}

	if err := WriteJSON(&buf, data, false); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, `"known": 42`) {
		t.Errorf("expected JSON with count, got:\n%s", out)
	}
	if strings.Contains(out, "```") {
		t.Error("normal mode should not have backticks")
	}
}

func TestWriteJSON_SlackMode(t *testing.T) {
	var buf bytes.Buffer

	if err := WriteJSON(&buf, []string{"alice/x"}, true); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "```\n") || !strings.HasSuffix(out, "```\n") {
		t.Errorf("slack mode should be fenced, got:\n%s", out)
	}
	if !strings.Contains(out, `"alice/x"`) {
		t.Errorf("expected JSON content, got:\n%s", out)
	}
}

func TestWriteJSON_Unsupported(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, make(chan int), false); err == nil {
		t.Fatal("expected marshal error")
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be written on error, got %q", buf.String())
	}
}

func TestWriteLines(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLines(&buf, []string{"alice/x", "bob/y"}, false); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "alice/x\nbob/y\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	buf.Reset()
	if err := WriteLines(&buf, []string{"alice/x"}, true); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "```\nalice/x\n```\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteLines_Error(t *testing.T) {
	if err := WriteLines(failingWriter{}, []string{"alice/x"}, false); err == nil {
		t.Fatal("expected write error")
	}
}
