package site

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/debemdeboas/notebook/internal/expand"
	"github.com/debemdeboas/notebook/internal/model"
)

// Rebuilt reports whether every page was written, as happens when the
// layout, configuration or static assets changed.
func (r *Report) Rebuilt() bool {
	return r.Built > 0 && r.Skipped == 0
}

// Warning is an expansion diagnostic found on a built page.
type Warning struct {
	Page       string
	Diagnostic expand.Diagnostic
}

func (w Warning) String() string {
	return w.Page + ": " + w.Diagnostic.String()
}

type Report struct {
	ID      string
	Built   int
	Skipped int
	Removed int
	// Tag listings written.
	Tags int
	// Pages whose output was written by this build.
	Pages    []model.PageID
	Warnings []Warning
	// Bytes written, compressed siblings included.
	Bytes    int64
	Duration time.Duration
}

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func (r *Report) Print(w io.Writer) {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Build " + r.ID))
	b.WriteString("\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	row("built", humanize.Comma(int64(r.Built)))
	row("skipped", humanize.Comma(int64(r.Skipped)))
	if r.Tags > 0 {
		row("tags", humanize.Comma(int64(r.Tags)))
	}
	if r.Removed > 0 {
		row("removed", humanize.Comma(int64(r.Removed)))
	}
	row("written", humanize.Bytes(uint64(r.Bytes)))
	row("took", r.Duration.Round(time.Millisecond).String())

	if len(r.Warnings) > 0 {
		b.WriteString(warningStyle.Render(fmt.Sprintf("%d %s", len(r.Warnings), plural(len(r.Warnings), "warning"))))
		b.WriteString("\n")
		for _, warn := range r.Warnings {
			b.WriteString("  ")
			b.WriteString(warn.String())
			b.WriteString("\n")
		}
	}

	fmt.Fprint(w, b.String())
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
