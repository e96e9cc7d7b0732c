package callout

import (
	"bytes"
	"fmt"
	"html"
)

// Renderer turns markdown into HTML. The site renderer is passed in so that
// block content goes through the same engine as the outer document.
type Renderer func(md []byte) []byte

type Preprocessor struct {
	render  Renderer
	classes map[Variant]string
}

type Option func(*Preprocessor)

// WithClass overrides the CSS class emitted for a variant.
func WithClass(v Variant, class string) Option {
	return func(p *Preprocessor) {
		if class != "" {
			p.classes[v] = class
		}
	}
}

func New(render Renderer, opts ...Option) *Preprocessor {
	p := &Preprocessor{
		render: render,
		classes: map[Variant]string{
			Note:    Note.Class(),
			Trigger: Trigger.Class(),
		},
	}
	if p.render == nil {
		p.render = escapeRenderer
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process replaces every callout block in doc with its hidden fragment.
func (p *Preprocessor) Process(doc []byte) []byte {
	out, _ := p.Extract(doc)
	return out
}

// Extract is Process that also returns the blocks in document order.
// When doc holds no blocks it is returned as is.
func (p *Preprocessor) Extract(doc []byte) ([]byte, []*Block) {
	out, blocks := p.Stub(doc)
	if len(blocks) == 0 {
		return doc, nil
	}
	return p.Splice(out, blocks), blocks
}

// Stub renders every block of doc and leaves a one-line placeholder
// element in its place, for a markdown engine to pass through as an HTML
// block. Splice fills the placeholders once the engine is done, so the
// engine never parses a fragment's own markup.
func (p *Preprocessor) Stub(doc []byte) ([]byte, []*Block) {
	segs := Scan(doc)

	var blocks []*Block
	var out bytes.Buffer
	out.Grow(len(doc))

	for _, seg := range segs {
		if !seg.IsBlock() {
			out.Write(seg.Source)
			continue
		}

		b := seg.Block
		b.HTML = p.render(b.Raw)

		// An HTML block cannot interrupt a paragraph.
		if out.Len() > 0 && !bytes.HasSuffix(out.Bytes(), []byte("\n\n")) {
			out.WriteByte('\n')
		}
		// The closing line's terminator follows in the next segment and
		// leaves the blank line the engine needs after an HTML block.
		out.WriteString(p.placeholder(b, len(blocks)))
		out.WriteByte('\n')
		blocks = append(blocks, b)
	}

	if len(blocks) == 0 {
		return doc, nil
	}

	calloutLogger.Debug().Int("blocks", len(blocks)).Msg("Callouts extracted")
	return out.Bytes(), blocks
}

// Splice fills the placeholders Stub left in rendered with the HTML of
// blocks, in order.
func (p *Preprocessor) Splice(rendered []byte, blocks []*Block) []byte {
	if len(blocks) == 0 {
		return rendered
	}

	var out bytes.Buffer
	out.Grow(len(rendered) + len(blocks)*256)

	rest := rendered
	for i, b := range blocks {
		ph := []byte(p.placeholder(b, i))
		at := bytes.Index(rest, ph)
		if at < 0 {
			calloutLogger.Warn().Str("id", b.ID).Msg("Callout placeholder lost by the renderer")
			continue
		}

		out.Write(rest[:at])
		out.WriteString(p.open(b))
		out.WriteByte('\n')
		out.Write(b.HTML)
		if len(b.HTML) > 0 && b.HTML[len(b.HTML)-1] != '\n' {
			out.WriteByte('\n')
		}
		out.WriteString("</div>")
		rest = rest[at+len(ph):]
	}
	out.Write(rest)

	return out.Bytes()
}

func (p *Preprocessor) open(b *Block) string {
	return fmt.Sprintf("<div id=\"%s\" class=\"callout %s\" hidden>",
		html.EscapeString(b.ID), html.EscapeString(p.classes[b.Variant]))
}

func (p *Preprocessor) placeholder(b *Block, i int) string {
	return fmt.Sprintf("%s<!--callout:%d--></div>", p.open(b), i)
}

func escapeRenderer(md []byte) []byte {
	return []byte("<pre>" + html.EscapeString(string(md)) + "</pre>\n")
}
