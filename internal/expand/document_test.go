package expand

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html>
<html><body>
<main>
<article data-expand-source>
<p>See <span data-expand="alpha">alpha</span> and <span data-expand="beta">beta</span>
or <span data-expand="ghost">ghost</span>.</p>
<div id="alpha" class="callout callout-note" hidden>
<p>Hello <em>world</em></p>
</div>
<div id="beta" class="callout callout-trigger" hidden>
<ul><li>beta item</li></ul>
</div>
<div id="dup" class="callout callout-note" hidden><p>first dup</p></div>
<div id="dup" class="callout callout-note" hidden><p>second dup</p></div>
</article>
<aside data-expansion></aside>
</main>
</body></html>`

func parsePage(t *testing.T, src string) *Document {
	t.Helper()
	d, err := Parse(strings.NewReader(src), DefaultSelectors())
	require.NoError(t, err)
	return d
}

func slotHTML(t *testing.T, d *Document) string {
	t.Helper()
	s, err := d.SlotHTML()
	require.NoError(t, err)
	return s
}

func TestDocumentTriggers(t *testing.T) {
	d := parsePage(t, page)

	var targets []string
	for _, tr := range d.Triggers() {
		targets = append(targets, tr.Target())
	}
	assert.Equal(t, []string{"alpha", "beta", "ghost"}, targets)
}

func TestDocumentLookup(t *testing.T) {
	d := parsePage(t, page)
	src := d.Source()

	n, ok := src.Lookup("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", n.ID())
	assert.True(t, n.Hidden())

	_, ok = src.Lookup("ghost")
	assert.False(t, ok)

	_, ok = src.Lookup(`alpha"]`)
	assert.False(t, ok, "malformed ids never reach the selector engine")
}

func TestDocumentNodeVisibility(t *testing.T) {
	d := parsePage(t, page)
	n, ok := d.Source().Lookup("beta")
	require.True(t, ok)

	clone := n.Clone()
	clone.SetHidden(false)
	assert.False(t, clone.Hidden())
	assert.True(t, n.Hidden())

	clone.SetHidden(true)
	assert.True(t, clone.Hidden())
}

func TestDocumentExpand(t *testing.T) {
	d := parsePage(t, page)
	c := d.Controller()
	require.Equal(t, 3, c.Listeners())

	triggers := d.Triggers()

	c.HoverEnter(triggers[0])
	assert.Equal(t, State{ID: "alpha"}, c.State())
	got := slotHTML(t, d)
	assert.Contains(t, got, `<div class="expansion"><div id="alpha" class="callout callout-note">`)
	assert.Contains(t, got, "<em>world</em>")
	assert.NotContains(t, got, "hidden")

	c.HoverEnter(triggers[1])
	got = slotHTML(t, d)
	assert.Equal(t, State{ID: "beta"}, c.State())
	assert.Contains(t, got, `id="beta"`)
	assert.NotContains(t, got, `id="alpha"`)
	assert.Equal(t, 1, strings.Count(got, `class="expansion"`))

	c.HoverEnter(triggers[2])
	assert.Equal(t, State{ID: "beta"}, c.State())
	assert.Equal(t, got, slotHTML(t, d))

	n, _ := d.Source().Lookup("alpha")
	assert.True(t, n.Hidden(), "page fragments are never modified")

	c.Clear()
	assert.True(t, c.State().Idle())
	assert.Equal(t, "", slotHTML(t, d))
	slot, ok := d.Slot()
	require.True(t, ok)
	assert.Equal(t, 0, slot.Len())
}

func TestDocumentDuplicateIsDeterministic(t *testing.T) {
	d := parsePage(t, page)
	c := d.Controller()

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Expand("dup"))
		got := slotHTML(t, d)
		assert.Contains(t, got, "first dup", "cycle %d", i)
		assert.NotContains(t, got, "second dup")
		require.NoError(t, c.Expand("alpha"))
	}
}

func TestDocumentWithoutSlot(t *testing.T) {
	d := parsePage(t, `<html><body><span data-expand="a">a</span><div id="a" hidden>x</div></body></html>`)

	_, ok := d.Slot()
	assert.False(t, ok)

	c := d.Controller()
	assert.NotPanics(t, func() {
		c.HoverEnter(d.Triggers()[0])
		c.Clear()
	})
	assert.True(t, c.State().Idle())

	_, err := d.SlotHTML()
	assert.ErrorIs(t, err, ErrNoSlot)
}

func TestDocumentSourceFallsBackToPage(t *testing.T) {
	d := parsePage(t, `<html><body><div id="a" hidden><p>x</p></div><div data-expansion></div></body></html>`)
	c := d.Controller()

	require.NoError(t, c.Expand("a"))
	assert.Contains(t, slotHTML(t, d), "<p>x</p>")
}

func TestDocumentCustomSelectors(t *testing.T) {
	src := `<html><body>
<a data-peek="n1">n1</a>
<section class="notes"><div id="n1" hidden>note one</div></section>
<div id="panel"></div>
</body></html>`

	d, err := Parse(strings.NewReader(src), Selectors{
		TriggerAttr:  "data-peek",
		Source:       ".notes",
		Slot:         "#panel",
		WrapperClass: "peek",
	})
	require.NoError(t, err)

	c := d.Controller()
	require.Equal(t, 1, c.Listeners())
	c.HoverEnter(d.Triggers()[0])

	got := slotHTML(t, d)
	assert.Contains(t, got, `<div class="peek"><div id="n1">note one</div></div>`)
}

func TestAudit(t *testing.T) {
	d := parsePage(t, page+`<span data-expand=""></span>`)

	diags := Audit(d)

	assert.Contains(t, diags, Diagnostic{Kind: MissingTarget, ID: "ghost"})
	assert.Contains(t, diags, Diagnostic{Kind: DuplicateID, ID: "dup", Count: 2})
	assert.Contains(t, diags, Diagnostic{Kind: EmptyTarget})
	assert.Len(t, diags, 3)

	assert.Equal(t, `duplicate-id: "dup" used 2 times`, Diagnostic{Kind: DuplicateID, ID: "dup", Count: 2}.String())
	assert.Equal(t, `missing-target: "ghost"`, Diagnostic{Kind: MissingTarget, ID: "ghost"}.String())
}

func TestAuditCleanPage(t *testing.T) {
	d := parsePage(t, `<html><body><article data-expand-source>
<span data-expand="a">a</span><span data-expand="a">again</span>
<div id="a" hidden>x</div></article><aside data-expansion></aside></body></html>`)

	assert.Empty(t, Audit(d))
}
