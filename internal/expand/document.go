package expand

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/debemdeboas/notebook/internal/callout"
)

// Selectors names the parts of a rendered page the controller works on.
type Selectors struct {
	// Attribute carried by trigger elements; its value is the target id.
	TriggerAttr string
	// Region holding the hidden fragments. The whole page when nothing matches.
	Source string
	Slot   string
	// Class of the element wrapping the clone inside the slot.
	WrapperClass string
}

func DefaultSelectors() Selectors {
	return Selectors{
		TriggerAttr:  "data-expand",
		Source:       "[data-expand-source]",
		Slot:         "[data-expansion]",
		WrapperClass: "expansion",
	}
}

// Document is a rendered HTML page exposing the controller's capabilities.
type Document struct {
	doc *goquery.Document
	sel Selectors
}

func Parse(r io.Reader, sel Selectors) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not parse page: %w", err)
	}
	return NewDocument(doc, sel), nil
}

func NewDocument(doc *goquery.Document, sel Selectors) *Document {
	def := DefaultSelectors()
	if sel.TriggerAttr == "" {
		sel.TriggerAttr = def.TriggerAttr
	}
	if sel.Source == "" {
		sel.Source = def.Source
	}
	if sel.Slot == "" {
		sel.Slot = def.Slot
	}
	if sel.WrapperClass == "" {
		sel.WrapperClass = def.WrapperClass
	}
	return &Document{doc: doc, sel: sel}
}

func (d *Document) Triggers() []Trigger {
	var triggers []Trigger
	d.doc.Find("[" + d.sel.TriggerAttr + "]").Each(func(_ int, s *goquery.Selection) {
		triggers = append(triggers, htmlTrigger{node: s.Get(0), attr: d.sel.TriggerAttr})
	})
	return triggers
}

func (d *Document) Source() Source {
	return htmlSource{region: d.sourceRegion()}
}

func (d *Document) sourceRegion() *goquery.Selection {
	region := d.doc.Find(d.sel.Source)
	if region.Length() == 0 {
		return d.doc.Selection
	}
	return region
}

// Slot returns the expansion region, if the page has one.
func (d *Document) Slot() (Slot, bool) {
	s := d.doc.Find(d.sel.Slot).First()
	if s.Length() == 0 {
		return nil, false
	}
	return &htmlSlot{sel: s, wrapperClass: d.sel.WrapperClass}, true
}

// Controller builds an idle controller over the page and attaches it to
// every trigger of the page.
func (d *Document) Controller(opts ...Option) *Controller {
	var c *Controller
	if slot, ok := d.Slot(); ok {
		c = New(d.Source(), slot, opts...)
	} else {
		c = New(d.Source(), nil, opts...)
	}
	c.Attach(d)
	return c
}

// SlotHTML returns the inner HTML of the expansion slot.
func (d *Document) SlotHTML() (string, error) {
	s := d.doc.Find(d.sel.Slot).First()
	if s.Length() == 0 {
		return "", ErrNoSlot
	}
	return s.Html()
}

func (d *Document) HTML() (string, error) {
	return d.doc.Html()
}

type htmlTrigger struct {
	node *html.Node
	attr string
}

func (t htmlTrigger) Target() string {
	for _, a := range t.node.Attr {
		if a.Key == t.attr {
			return a.Val
		}
	}
	return ""
}

type htmlSource struct {
	region *goquery.Selection
}

func (s htmlSource) Lookup(id string) (Node, bool) {
	if !callout.ValidID(id) {
		return nil, false
	}
	m := s.region.Find(`[id="` + id + `"]`).First()
	if m.Length() == 0 {
		return nil, false
	}
	return htmlNode{sel: m}, true
}

type htmlNode struct {
	sel *goquery.Selection
}

func (n htmlNode) ID() string {
	return n.sel.AttrOr("id", "")
}

func (n htmlNode) Hidden() bool {
	_, ok := n.sel.Attr("hidden")
	return ok
}

func (n htmlNode) SetHidden(hidden bool) {
	if hidden {
		n.sel.SetAttr("hidden", "")
		return
	}
	n.sel.RemoveAttr("hidden")
}

func (n htmlNode) Clone() Node {
	return htmlNode{sel: n.sel.Clone()}
}

type htmlSlot struct {
	sel          *goquery.Selection
	wrapperClass string
}

// ReplaceChildren only accepts nodes taken from a Document.
func (s *htmlSlot) ReplaceChildren(n Node) {
	hn, ok := n.(htmlNode)
	if !ok {
		expandLogger.Error().Str("node_type", fmt.Sprintf("%T", n)).Msg("Foreign node cannot be inserted into HTML slot")
		return
	}

	wrapper := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr:     []html.Attribute{{Key: "class", Val: s.wrapperClass}},
	}
	for _, node := range hn.sel.Nodes {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
		wrapper.AppendChild(node)
	}

	s.sel.Empty()
	s.sel.AppendNodes(wrapper)
}

func (s *htmlSlot) Clear() {
	s.sel.Empty()
}

func (s *htmlSlot) Len() int {
	return s.sel.Contents().Length()
}
