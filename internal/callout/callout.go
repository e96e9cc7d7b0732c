// Package callout extracts [!note:ID] and [!trigger:ID] blocks from markdown
// documents and replaces them with hidden, identified HTML fragments.
package callout

import (
	"github.com/rs/zerolog"
)

var calloutLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	calloutLogger = l
}

type Variant int

const (
	Note Variant = iota
	Trigger
)

var variants = []Variant{Note, Trigger}

func (v Variant) String() string {
	switch v {
	case Note:
		return "note"
	case Trigger:
		return "trigger"
	default:
		return "unknown"
	}
}

// Class returns the variant-specific CSS class of the emitted container.
func (v Variant) Class() string {
	return "callout-" + v.String()
}

// Block is a single callout span found in a document.
type Block struct {
	ID      string
	Variant Variant

	// Markdown source between the opening and closing markers,
	// line terminators included.
	Raw []byte

	// Rendered once by the Preprocessor.
	HTML []byte
}

// Segment is either plain document text or a callout block.
// Concatenating the Source of every segment yields the scanned document.
type Segment struct {
	Source []byte
	Block  *Block
}

func (s Segment) IsBlock() bool {
	return s.Block != nil
}

// ValidID reports whether id is a well-formed callout identifier ([\w-]+).
func ValidID(id string) bool {
	return validID([]byte(id))
}

func validID(id []byte) bool {
	if len(id) == 0 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}
