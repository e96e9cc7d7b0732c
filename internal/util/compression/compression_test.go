package compression

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressors(t *testing.T) {
	page := []byte(strings.Repeat(`<div id="alpha" class="callout callout-note" hidden><p>x</p></div>`, 50))

	for _, c := range All() {
		t.Run(c.Encoding(), func(t *testing.T) {
			out, err := c.Compress(page)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			if len(out) >= len(page) {
				t.Errorf("Expected repetitive input to shrink, got %d >= %d", len(out), len(page))
			}

			back, err := c.Decompress(out)
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(back, page) {
				t.Error("Round trip changed the content")
			}
		})
	}
}

func TestForExtension(t *testing.T) {
	tests := []struct {
		ext      string
		encoding string
		ok       bool
	}{
		{".gz", "gzip", true},
		{".zst", "zstd", true},
		{".br", "", false},
	}

	for _, tt := range tests {
		c, ok := ForExtension(tt.ext)
		if ok != tt.ok {
			t.Errorf("ForExtension(%q) ok = %v, want %v", tt.ext, ok, tt.ok)
			continue
		}
		if ok && c.Encoding() != tt.encoding {
			t.Errorf("ForExtension(%q) encoding = %q, want %q", tt.ext, c.Encoding(), tt.encoding)
		}
	}
}

func TestDecompressGarbage(t *testing.T) {
	if _, err := (GzipCompressor{}).Decompress([]byte("not gzip")); err == nil {
		t.Error("Expected gzip error")
	}
}
