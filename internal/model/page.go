// Package model defines core data structures and types for the site.
package model

import (
	"html/template"
	"strings"
	"time"

	"github.com/debemdeboas/notebook/internal/callout"
	"github.com/debemdeboas/notebook/internal/util"
)

type PageID string

type Page struct {
	ID PageID

	// Output directory name; the page is served at /<slug>/.
	Slug    string
	Title   string
	Content template.HTML

	// Source path relative to the content root.
	Path string

	// Hash of the markdown source, used for incremental builds and as the
	// render cache key.
	MDContentHash string

	Markdown     []byte
	CreatedDate  time.Time
	ModifiedDate time.Time

	// Optional data from Mmark front matter.
	Info *util.ExtendedTitleData

	// Annotation blocks found in the source, in document order.
	Callouts []*callout.Block
}

func (p *Page) GetTitle() string {
	if p.Info != nil && p.Info.Title != "" {
		var s strings.Builder

		if p.Info.SeriesInfo.Name != "" && p.Info.SeriesInfo.Value != "" {
			s.WriteString("[")
			s.WriteString(p.Info.SeriesInfo.Name)
			s.WriteString("-")
			s.WriteString(p.Info.SeriesInfo.Value)
			s.WriteString("] ")
		}

		s.WriteString(p.Info.Title)

		return s.String()
	}
	return p.Title
}

func (p *Page) Tags() []string {
	if p.Info == nil {
		return nil
	}
	return p.Info.Tags
}

func (p *Page) Draft() bool {
	return p.Info != nil && p.Info.Draft
}

// URL is the site-relative address of the page.
func (p *Page) URL() string {
	return "/" + p.Slug + "/"
}
