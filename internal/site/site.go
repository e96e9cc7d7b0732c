// Package site builds the static site: every page is rendered, audited for
// broken expansion triggers and written with its precompressed siblings.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"

	"github.com/debemdeboas/notebook/internal/cache"
	"github.com/debemdeboas/notebook/internal/config"
	"github.com/debemdeboas/notebook/internal/expand"
	"github.com/debemdeboas/notebook/internal/model"
	"github.com/debemdeboas/notebook/internal/render"
	"github.com/debemdeboas/notebook/internal/repository"
	"github.com/debemdeboas/notebook/internal/theme"
	"github.com/debemdeboas/notebook/internal/util"
	"github.com/debemdeboas/notebook/internal/util/compression"
	"github.com/debemdeboas/notebook/web"
)

var siteLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	siteLogger = l
}

// ErrBrokenTriggers is returned in strict mode when a page has triggers
// that cannot expand.
var ErrBrokenTriggers = errors.New("page has broken expansion triggers")

type Builder struct {
	repo     repository.PageRepository
	manifest *repository.ManifestRepository
	out      afero.Fs
	assets   fs.FS

	force      bool
	liveReload bool
}

type Option func(*Builder)

// WithManifest enables incremental builds and pruning of removed pages.
func WithManifest(m *repository.ManifestRepository) Option {
	return func(b *Builder) { b.manifest = m }
}

// WithForce rebuilds every page regardless of the manifest.
func WithForce(force bool) Option {
	return func(b *Builder) { b.force = force }
}

// WithLiveReload makes pages subscribe to the dev server's reload events.
func WithLiveReload(enabled bool) Option {
	return func(b *Builder) { b.liveReload = enabled }
}

// WithAssets replaces the embedded templates and static files.
func WithAssets(assets fs.FS) Option {
	return func(b *Builder) { b.assets = assets }
}

// NewBuilder writes into out, which is rooted at the output directory.
// The repository must already be initialized.
func NewBuilder(repo repository.PageRepository, out afero.Fs, opts ...Option) *Builder {
	b := &Builder{
		repo:   repo,
		out:    out,
		assets: web.Content,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Selectors are the controller selectors configured for the site.
func Selectors() expand.Selectors {
	c := config.AppConfig.Callouts
	return expand.Selectors{
		TriggerAttr:  c.TriggerAttribute,
		Source:       c.SourceSelector,
		Slot:         c.SlotSelector,
		WrapperClass: c.WrapperClass,
	}
}

// PagePath is the output file of the page with the given slug.
func PagePath(slug string) string {
	return "/" + slug + "/" + config.PageFile
}

type build struct {
	*Builder

	id          string
	tmplPage    *template.Template
	tmplIndex   *template.Template
	fingerprint string
	syntaxTheme string
	compressors []compression.Compressor
}

type pageResult struct {
	id       model.PageID
	skipped  bool
	size     int64
	warnings []Warning
}

func (b *Builder) Build(ctx context.Context) (*Report, error) {
	started := time.Now()
	bd := &build{
		Builder:     b,
		id:          uuid.NewString(),
		syntaxTheme: theme.SiteSyntaxTheme(),
	}
	if config.AppConfig.Build.Compress {
		bd.compressors = compression.All()
	}

	log := siteLogger.With().Str("build_id", bd.id).Logger()
	log.Info().Bool("force", b.force).Msg("Starting build")
	if !lo.Contains(theme.GetSyntaxThemes(), bd.syntaxTheme) {
		log.Warn().Str("theme", bd.syntaxTheme).Msg("Unknown syntax theme, highlighting with the chroma fallback")
	}

	report := &Report{ID: bd.id}

	n, err := bd.writeStatic()
	if err != nil {
		return nil, err
	}
	report.Bytes += n

	if err := bd.parseTemplates(); err != nil {
		return nil, err
	}

	pages := b.repo.GetPageList()

	p := pool.NewWithResults[pageResult]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(config.AppConfig.Build.Workers)
	for _, page := range pages {
		p.Go(func(ctx context.Context) (pageResult, error) {
			return bd.buildPage(ctx, page)
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	for _, res := range results {
		if res.skipped {
			report.Skipped++
			continue
		}
		report.Built++
		report.Pages = append(report.Pages, res.id)
		report.Bytes += res.size
		report.Warnings = append(report.Warnings, res.warnings...)
	}

	n, err = bd.writeIndex(pages)
	if err != nil {
		return nil, err
	}
	report.Bytes += n

	tags, n, err := bd.writeTags(pages)
	report.Bytes += n
	if err != nil {
		return nil, err
	}
	report.Tags = tags

	n, err = bd.writeFeed(pages)
	if err != nil {
		return nil, err
	}
	report.Bytes += n

	removed, err := bd.prune(pages)
	if err != nil {
		return nil, err
	}
	report.Removed = removed

	report.Duration = time.Since(started)
	if b.manifest != nil {
		err := b.manifest.RecordBuild(repository.BuildRecord{
			ID:         bd.id,
			StartedAt:  started,
			FinishedAt: started.Add(report.Duration),
			Pages:      report.Built,
			Skipped:    report.Skipped,
			Warnings:   len(report.Warnings),
		})
		if err != nil {
			return nil, err
		}
	}

	log.Info().
		Int("built", report.Built).
		Int("skipped", report.Skipped).
		Int("removed", report.Removed).
		Int("warnings", len(report.Warnings)).
		Dur("duration", report.Duration).
		Msg("Build finished")
	return report, nil
}

func (bd *build) funcs() template.FuncMap {
	return template.FuncMap{
		"static": staticURL,
		"tagURL": tagURL,
		"join":   strings.Join,
		"isoDate": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"longDate": func(t time.Time) string {
			return t.Format("January 2, 2006")
		},
	}
}

// staticURL is the address of an emitted static file with its content hash
// as a cache-busting query.
func staticURL(name string) string {
	p := config.StaticURLPath + name
	if hash, ok := cache.GetStaticHash(p); ok {
		return p + "?v=" + hash[:12]
	}
	return p
}

func (bd *build) parseTemplates() error {
	layout := config.TemplatesLocalDir + "/" + config.TemplateLayout
	parse := func(name string) (*template.Template, error) {
		tmpl, err := template.New(config.TemplateLayout).
			Funcs(bd.funcs()).
			ParseFS(bd.assets, layout, config.TemplatesLocalDir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("error parsing template %s: %w", name, err)
		}
		return tmpl, nil
	}

	var err error
	if bd.tmplPage, err = parse(config.TemplatePage); err != nil {
		return err
	}
	if bd.tmplIndex, err = parse(config.TemplateIndex); err != nil {
		return err
	}

	// Pages are rebuilt when anything that shapes their output changes.
	var fp strings.Builder
	for _, name := range []string{config.TemplateLayout, config.TemplatePage} {
		data, err := fs.ReadFile(bd.assets, config.TemplatesLocalDir+"/"+name)
		if err != nil {
			return err
		}
		fp.Write(data)
	}
	cfg := config.AppConfig
	fmt.Fprintf(&fp, "%s|%s|%+v|%+v|%+v|%t|%t",
		cfg.Content.Renderer, bd.syntaxTheme, cfg.Site, cfg.Callouts, cfg.Meta, bd.liveReload, cfg.Build.Compress)
	// Asset URLs carry their hashes.
	for _, name := range []string{"site.css", "expand.js", config.SyntaxCSSFile} {
		fp.WriteString(staticURL(name))
	}
	bd.fingerprint = util.ContentHashString(fp.String())
	return nil
}

func (bd *build) pageData(url string) *model.PageData {
	pd := model.NewPageData(url)
	pd.LiveReload = bd.liveReload && pd.LiveReload
	pd.SyntaxCSSPath = staticURL(config.SyntaxCSSFile)
	return pd
}

func (bd *build) buildPage(ctx context.Context, page *model.Page) (pageResult, error) {
	res := pageResult{id: page.ID}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	log := siteLogger.With().Str("page", page.Slug).Logger()
	outPath := PagePath(page.Slug)
	hash := util.ContentHashString(page.MDContentHash + bd.fingerprint)

	if bd.manifest != nil && !bd.force {
		if entry, err := bd.manifest.Get(page.Slug); err == nil && entry.ContentHash == hash {
			if ok, _ := afero.Exists(bd.out, outPath); ok {
				log.Debug().Msg("Unchanged, skipping")
				res.skipped = true
				return res, nil
			}
		}
	}

	out := render.RenderMarkdownCached(page.Markdown, page.MDContentHash, bd.syntaxTheme)

	rendered := *page
	rendered.Content = template.HTML(out.HTML)
	rendered.Callouts = out.Callouts

	pd := bd.pageData(page.URL())
	pd.Page = &rendered

	var buf bytes.Buffer
	if err := bd.tmplPage.ExecuteTemplate(&buf, config.TemplateLayout, pd); err != nil {
		return res, fmt.Errorf("error executing template for %s: %w", page.Slug, err)
	}

	warnings, err := audit(page.Slug, buf.Bytes())
	if err != nil {
		return res, err
	}
	for _, w := range warnings {
		log.Warn().Str("kind", string(w.Diagnostic.Kind)).Str("id", w.Diagnostic.ID).Msg("Callout diagnostic")
	}
	if config.AppConfig.Callouts.Strict {
		broken := lo.CountBy(warnings, func(w Warning) bool { return w.Diagnostic.Kind != expand.DuplicateID })
		if broken > 0 {
			return res, fmt.Errorf("%w: %s (%d)", ErrBrokenTriggers, page.Slug, broken)
		}
	}
	res.warnings = warnings

	n, err := bd.write(outPath, buf.Bytes())
	if err != nil {
		return res, err
	}
	res.size = n

	if bd.manifest != nil {
		err := bd.manifest.Put(repository.ManifestEntry{
			Slug:        page.Slug,
			ContentHash: hash,
			OutputPath:  outPath,
			BuildID:     bd.id,
			BuiltAt:     time.Now(),
			Callouts:    len(out.Callouts),
			Size:        int64(buf.Len()),
		})
		if err != nil {
			return res, err
		}
	}

	log.Debug().Int("callouts", len(out.Callouts)).Int("bytes", buf.Len()).Msg("Page built")
	return res, nil
}

func audit(slug string, page []byte) ([]Warning, error) {
	doc, err := expand.Parse(bytes.NewReader(page), Selectors())
	if err != nil {
		return nil, fmt.Errorf("error auditing %s: %w", slug, err)
	}
	return lo.Map(expand.Audit(doc), func(d expand.Diagnostic, _ int) Warning {
		return Warning{Page: slug, Diagnostic: d}
	}), nil
}

func (bd *build) writeIndex(pages []*model.Page) (int64, error) {
	pd := bd.pageData("/")
	pd.Pages = pages

	var buf bytes.Buffer
	if err := bd.tmplIndex.ExecuteTemplate(&buf, config.TemplateLayout, pd); err != nil {
		return 0, fmt.Errorf("error executing index template: %w", err)
	}
	return bd.write("/"+config.PageFile, buf.Bytes())
}

// writeStatic copies the embedded static files and the generated syntax
// stylesheet, recording their hashes for cache busting.
func (bd *build) writeStatic() (int64, error) {
	var total int64
	err := fs.WalkDir(bd.assets, config.StaticLocalDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(bd.assets, p)
		if err != nil {
			return err
		}
		n, err := bd.writeStaticFile(strings.TrimPrefix(p, config.StaticLocalDir+"/"), data)
		total += n
		return err
	})
	if err != nil {
		return total, fmt.Errorf("error writing static files: %w", err)
	}

	n, err := bd.writeStaticFile(config.SyntaxCSSFile, []byte(theme.GenerateSiteCSS()))
	total += n
	return total, err
}

func (bd *build) writeStaticFile(name string, data []byte) (int64, error) {
	p := config.StaticURLPath + name
	cache.SetStaticHash(p, util.ContentHash(data))
	return bd.write(p, data)
}

// write stores data at name along with one compressed sibling per
// configured compressor and returns the bytes written. Siblings of
// compressors that are no longer configured are removed.
func (bd *build) write(name string, data []byte) (int64, error) {
	if err := bd.out.MkdirAll(path.Dir(name), 0o755); err != nil {
		return 0, fmt.Errorf("error creating directory for %s: %w", name, err)
	}
	if err := afero.WriteFile(bd.out, name, data, 0o644); err != nil {
		return 0, fmt.Errorf("error writing %s: %w", name, err)
	}
	total := int64(len(data))

	for _, c := range bd.compressors {
		z, err := c.Compress(data)
		if err != nil {
			return total, fmt.Errorf("error compressing %s: %w", name, err)
		}
		if err := afero.WriteFile(bd.out, name+c.Extension(), z, 0o644); err != nil {
			return total, fmt.Errorf("error writing %s: %w", name+c.Extension(), err)
		}
		total += int64(len(z))
	}

	for _, c := range compression.All() {
		if lo.ContainsBy(bd.compressors, func(cur compression.Compressor) bool { return cur.Extension() == c.Extension() }) {
			continue
		}
		if err := bd.removeFile(name + c.Extension()); err != nil {
			return total, err
		}
	}
	return total, nil
}

// remove deletes name and every compressed sibling it may have.
func (bd *build) remove(name string) error {
	if err := bd.removeFile(name); err != nil {
		return err
	}
	for _, c := range compression.All() {
		if err := bd.removeFile(name + c.Extension()); err != nil {
			return err
		}
	}
	return nil
}

func (bd *build) removeFile(name string) error {
	if err := bd.out.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error removing %s: %w", name, err)
	}
	return nil
}

// prune removes the output of pages that no longer exist.
func (bd *build) prune(pages []*model.Page) (int, error) {
	if bd.manifest == nil {
		return 0, nil
	}
	keep := lo.Map(pages, func(p *model.Page, _ int) string { return p.Slug })
	stale, err := bd.manifest.Prune(keep)
	if err != nil {
		return 0, err
	}

	for _, p := range stale {
		if err := bd.remove(p); err != nil {
			siteLogger.Warn().Err(err).Str("path", p).Msg("Error removing stale output")
		}
		// Leaves the directory in place when something else lives there.
		_ = bd.out.Remove(path.Dir(p))
		siteLogger.Info().Str("path", p).Msg("Removed stale page")
	}
	return len(stale), nil
}
