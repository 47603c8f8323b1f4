package service

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPreviewPrefersPlainText(t *testing.T) {
	got := Preview("hello   there\nworld", "<p>ignored</p>")
	if got != "hello there world" {
		t.Fatalf("Preview = %q", got)
	}
}

func TestPreviewStripsHTML(t *testing.T) {
	got := Preview("", "<p>Hello <b>bold</b> &amp; <script>alert(1)</script>plain</p>")
	if strings.Contains(got, "<") || strings.Contains(got, "alert") {
		t.Fatalf("markup leaked into preview: %q", got)
	}
	if !strings.Contains(got, "Hello bold &") {
		t.Fatalf("entities not decoded: %q", got)
	}
}

func TestPreviewTruncates(t *testing.T) {
	long := strings.Repeat("ä ", 200)
	got := Preview(long, "")
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("long preview not truncated: %q", got)
	}
	if n := utf8.RuneCountInString(got); n > previewLimit+1 {
		t.Fatalf("preview too long: %d runes", n)
	}
}

func TestPreviewEmpty(t *testing.T) {
	if got := Preview("", ""); got != "" {
		t.Fatalf("Preview of nothing = %q", got)
	}
	if got := Preview("   ", ""); got != "" {
		t.Fatalf("Preview of whitespace = %q", got)
	}
}
