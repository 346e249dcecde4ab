package conversation

import (
	"strings"
	"testing"
)

func TestPreview(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		html string
		want string
	}{
		{"plain", "  Running   late\n today ", "", "Running late today"},
		{"html fallback", "", "<div>Invoice&nbsp;<em>attached</em></div>", "Invoice attached"},
		{"body wins", "text", "<p>html</p>", "text"},
		{"empty", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview(tt.body, tt.html); got != tt.want {
				t.Fatalf("Preview() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPreviewTruncates(t *testing.T) {
	t.Parallel()

	got := Preview(strings.Repeat("é", previewRunes+20), "")
	if n := len([]rune(got)); n != previewRunes {
		t.Fatalf("expected %d runes, got %d", previewRunes, n)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}

func TestPlainTextSeparatesBlocks(t *testing.T) {
	t.Parallel()

	if got := PlainText("<p>Hi</p><p>there</p>"); got != "Hi there" {
		t.Fatalf("unexpected plain text %q", got)
	}
	if got := SanitizeHTML("   "); got != "" {
		t.Fatalf("expected empty sanitized html, got %q", got)
	}
}
