// Package render provides markdown rendering and syntax highlighting functionality.
package render

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/debemdeboas/notebook/internal/cache"
	"github.com/debemdeboas/notebook/internal/callout"
	"github.com/debemdeboas/notebook/internal/config"
	"github.com/debemdeboas/notebook/internal/theme"
	"github.com/debemdeboas/notebook/internal/util"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	md_html "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mmarkdown/mmark/v2/lang"
	"github.com/mmarkdown/mmark/v2/mast"
	"github.com/mmarkdown/mmark/v2/mparser"
	"github.com/mmarkdown/mmark/v2/render/mhtml"
)

var renderLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	renderLogger = l
}

// Output is one rendered document.
type Output struct {
	HTML []byte
	// Title block of the document; only the mmark engine fills it.
	Info *mast.TitleData
	// Top-level annotation blocks, in document order.
	Callouts []*callout.Block
}

func HighlightCode(code, language, highlightTheme string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	style := styles.Get(highlightTheme)
	formatter := theme.GetFormatter()
	err = formatter.Format(&buf, style, iterator)
	if err != nil {
		return code
	}

	res := html.UnescapeString(buf.String())
	res = config.RegexCodeCallout.ReplaceAllString(res, "<span class=\"callout\">$1</span>")
	return res
}

func engine() string {
	if config.AppConfig == nil {
		return config.RendererMmark
	}
	return config.AppConfig.Content.Renderer
}

// RenderMarkdown turns the annotation blocks of md into hidden fragments and
// renders the result with the configured engine. Block content is rendered
// by the same function, so blocks may hold any markdown the page can.
func RenderMarkdown(md []byte, highlightTheme string) *Output {
	return renderWith(engine(), md, highlightTheme)
}

func renderWith(eng string, md []byte, highlightTheme string) *Output {
	md = markdown.NormalizeNewlines(md)
	if eng == config.RendererClassic {
		// The classic engine has no title block support.
		_, md = util.SplitFrontMatter(md)
	}
	pre := preprocessor(eng, highlightTheme)
	md, blocks := pre.Stub(md)

	out := &Output{Callouts: blocks}
	switch eng {
	case config.RendererClassic:
		out.HTML = RenderMarkdownClassic(md, highlightTheme)
	default:
		out.HTML, out.Info = RenderMarkdownMmark(md, highlightTheme)
	}
	out.HTML = pre.Splice(out.HTML, blocks)
	return out
}

func preprocessor(eng, highlightTheme string) *callout.Preprocessor {
	inner := func(md []byte) []byte {
		return renderWith(eng, md, highlightTheme).HTML
	}

	var opts []callout.Option
	if config.AppConfig != nil {
		opts = append(opts,
			callout.WithClass(callout.Note, config.AppConfig.Callouts.NoteClass),
			callout.WithClass(callout.Trigger, config.AppConfig.Callouts.TriggerClass),
		)
	}
	return callout.New(inner, opts...)
}

var renderGroup singleflight.Group

// RenderMarkdownCached memoizes RenderMarkdown by content hash, engine and
// syntax theme. Concurrent misses for one key render once.
func RenderMarkdownCached(md []byte, contentHash, highlightTheme string) *Output {
	if contentHash == "" {
		renderLogger.Warn().Msg("Content hash is empty, skipping cache check")
		return RenderMarkdown(md, highlightTheme)
	}

	key := cache.RenderKey{ContentHash: contentHash, Engine: engine(), SyntaxTheme: highlightTheme}
	if cached, found := cache.GetRenderedMarkdown(key); found {
		renderLogger.Debug().Str("contentHash", contentHash).Str("highlightTheme", highlightTheme).Msg("Cache hit for rendered markdown")
		return cached.Extra.(*Output)
	}

	renderLogger.Debug().Str("contentHash", contentHash).Str("highlightTheme", highlightTheme).Msg("Cache miss for rendered markdown")
	v, _, _ := renderGroup.Do(key.ContentHash+"\x00"+key.Engine+"\x00"+key.SyntaxTheme, func() (any, error) {
		out := renderWith(key.Engine, md, highlightTheme)
		cache.SetRenderedMarkdown(key, out.HTML, out)
		return out, nil
	})

	return v.(*Output)
}

func RenderMarkdownClassic(md []byte, highlightTheme string) []byte {
	opts := md_html.RendererOptions{
		Flags:    md_html.CommonFlags | md_html.HrefTargetBlank | md_html.FootnoteReturnLinks,
		Comments: [][]byte{[]byte("//"), []byte("#")},
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if code, ok := node.(*ast.CodeBlock); ok && entering {
				var lang string
				if info := code.Info; info != nil {
					lang = string(info)
				}
				highlighted := HighlightCode(string(code.Literal), lang, highlightTheme)
				fmt.Fprintf(w, "<div class=\"highlight\">%s</div>", highlighted)
				return ast.GoToNext, true
			}

			if co, ok := node.(*ast.Callout); ok && entering {
				fmt.Fprintf(w, "<span class=\"callout\">%s</span>", co.ID)
				return ast.GoToNext, true
			}

			return ast.GoToNext, false
		},
	}

	doc := parser.NewWithExtensions(
		parser.Tables | parser.FencedCode | parser.Autolink | parser.Strikethrough | parser.SpaceHeadings |
			parser.HeadingIDs | parser.BackslashLineBreak | parser.SuperSubscript | parser.DefinitionLists | parser.MathJax |
			parser.AutoHeadingIDs | parser.Footnotes | parser.OrderedListStart | parser.Attributes |
			parser.Mmark | parser.NonBlockingSpace,
	).Parse(md)

	return markdown.Render(doc, md_html.NewRenderer(opts))
}

func RenderMarkdownMmark(md []byte, highlightTheme string) ([]byte, *mast.TitleData) {
	md = markdown.NormalizeNewlines(md)

	p := parser.NewWithExtensions(mparser.Extensions | parser.NoIntraEmphasis)

	init := mparser.NewInitial("")
	var info *mast.TitleData

	p.Opts = parser.Options{
		ParserHook: func(data []byte) (ast.Node, []byte, int) {
			node, data, consumed := mparser.Hook(data)
			if t, ok := node.(*mast.Title); ok {
				info = t.TitleData
			}
			return node, data, consumed
		},
		ReadIncludeFn: init.ReadInclude,
		Flags:         parser.FlagsNone,
	}

	doc := markdown.Parse(md, p)

	mparser.AddIndex(doc)

	// info stays nil when the document has no title block
	if info == nil {
		info = &mast.TitleData{
			Title:    "Untitled",
			Language: "en",
		}
	}

	mhtmlOpts := mhtml.RendererOptions{
		Language: lang.New(info.Language),
	}

	opts := md_html.RendererOptions{
		Comments: [][]byte{[]byte("//"), []byte("#")},
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if code, ok := node.(*ast.CodeBlock); ok && entering {
				var lang string
				if info := code.Info; info != nil {
					lang = string(info)
				}
				highlighted := HighlightCode(string(code.Literal), lang, highlightTheme)
				fmt.Fprintf(w, "<div class=\"highlight\">%s</div>", highlighted)
				return ast.GoToNext, true
			}

			return mhtmlOpts.RenderHook(w, node, entering)
		},
		Flags: md_html.CommonFlags | md_html.FootnoteNoHRTag | md_html.FootnoteReturnLinks,
	}

	return markdown.Render(doc, md_html.NewRenderer(opts)), info
}

// WarmCache pre-renders markdown content asynchronously to warm the cache
func WarmCache(md []byte, contentHash, highlightTheme string) {
	renderLogger.Debug().Str("contentHash", contentHash).Str("highlightTheme", highlightTheme).Msg("Starting cache warming")
	go func() {
		RenderMarkdownCached(md, contentHash, highlightTheme)
		renderLogger.Debug().Str("contentHash", contentHash).Str("highlightTheme", highlightTheme).Msg("Cache warming completed")
	}()
}
