package library

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPreview_StripsMarkup(t *testing.T) {
	got := preview("<b>Hello</b>\n\n  <i>world</i> &amp; co", 300)
	if want := "Hello world & co"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPreview_Truncates(t *testing.T) {
	long := strings.Repeat("é", 400)
	got := preview(long, 300)
	if n := utf8.RuneCountInString(got); n != 301 {
		t.Fatalf("runes: got %d, want 300 plus ellipsis", n)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("missing ellipsis: %q", got[len(got)-8:])
	}
}

func TestPreview_UsesConfig(t *testing.T) {
	l := testLibrary(t)
	l.config.PreviewRunes = 5
	if got := l.Preview("abcdefgh"); got != "abcde…" {
		t.Fatalf("got %q", got)
	}
}

func TestCaptureHTML(t *testing.T) {
	l := testLibrary(t)
	p, err := l.CaptureHTML(context.Background(), "captured", `<p>Explain <strong>goroutines</strong></p><ul><li>simply</li></ul>`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(p.Content, "**goroutines**") {
		t.Errorf("bold not converted: %q", p.Content)
	}
	if !strings.Contains(p.Content, "simply") || strings.Contains(p.Content, "<li>") {
		t.Errorf("list not converted: %q", p.Content)
	}
	if p.Name != "captured" || p.ID == "" {
		t.Fatalf("saved prompt: %+v", p)
	}
}

func TestCaptureHTML_Empty(t *testing.T) {
	l := testLibrary(t)
	if _, err := l.CaptureHTML(context.Background(), "x", "<p>  </p>"); err == nil {
		t.Fatal("expected error for empty capture")
	}
}
