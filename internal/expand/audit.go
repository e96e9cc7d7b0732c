package expand

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

type DiagnosticKind string

const (
	// A trigger points at an id that no element of the source region carries.
	MissingTarget DiagnosticKind = "missing-target"
	// An id is carried by more than one element; lookups resolve to the first.
	DuplicateID DiagnosticKind = "duplicate-id"
	// A trigger has an empty target.
	EmptyTarget DiagnosticKind = "empty-target"
)

type Diagnostic struct {
	Kind  DiagnosticKind
	ID    string
	Count int
}

func (d Diagnostic) String() string {
	switch d.Kind {
	case DuplicateID:
		return fmt.Sprintf("%s: %q used %d times", d.Kind, d.ID, d.Count)
	default:
		return fmt.Sprintf("%s: %q", d.Kind, d.ID)
	}
}

// Audit checks the page for triggers that cannot expand and for ambiguous
// identifiers. Nothing is corrected; the findings are for the build log.
func Audit(d *Document) []Diagnostic {
	var diags []Diagnostic

	src := d.Source()
	seen := make(map[string]bool)
	for _, t := range d.Triggers() {
		target := t.Target()
		if target == "" {
			diags = append(diags, Diagnostic{Kind: EmptyTarget})
			continue
		}
		if seen[target] {
			continue
		}
		seen[target] = true
		if _, ok := src.Lookup(target); !ok {
			diags = append(diags, Diagnostic{Kind: MissingTarget, ID: target})
		}
	}

	region := d.sourceRegion()
	counts := make(map[string]int)
	var order []string
	region.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		id := s.AttrOr("id", "")
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	})
	for _, id := range order {
		if counts[id] > 1 {
			diags = append(diags, Diagnostic{Kind: DuplicateID, ID: id, Count: counts[id]})
		}
	}

	return diags
}
