package site

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/samber/lo"

	"github.com/debemdeboas/notebook/internal/config"
	"github.com/debemdeboas/notebook/internal/model"
	"github.com/debemdeboas/notebook/internal/render"
)

// TagSlug is the directory name of the listing for tag.
func TagSlug(tag string) string {
	return lo.KebabCase(tag)
}

func tagURL(tag string) string {
	return config.TagsURLPath + TagSlug(tag) + "/"
}

// TagPath is the output file of the listing for tag.
func TagPath(tag string) string {
	return tagURL(tag) + config.PageFile
}

// FeedPath is the output file of the Atom feed.
const FeedPath = "/" + config.FeedFile

type tagGroup struct {
	name  string
	pages []*model.Page
}

// groupByTag collects pages under each tag, keeping their order. Tags that
// share a slug are one group, named after the first spelling seen.
func groupByTag(pages []*model.Page) []tagGroup {
	groups := map[string]*tagGroup{}
	for _, p := range pages {
		seen := map[string]bool{}
		for _, tag := range p.Tags() {
			slug := TagSlug(tag)
			if slug == "" || seen[slug] {
				continue
			}
			seen[slug] = true

			g, ok := groups[slug]
			if !ok {
				g = &tagGroup{name: tag}
				groups[slug] = g
			}
			g.pages = append(g.pages, p)
		}
	}

	slugs := lo.Keys(groups)
	slices.Sort(slugs)
	return lo.Map(slugs, func(slug string, _ int) tagGroup { return *groups[slug] })
}

// writeTags replaces the tag listings with one page per tag in use.
func (bd *build) writeTags(pages []*model.Page) (int, int64, error) {
	dir := strings.TrimSuffix(config.TagsURLPath, "/")
	if err := bd.out.RemoveAll(dir); err != nil {
		return 0, 0, fmt.Errorf("error clearing tag listings: %w", err)
	}

	groups := groupByTag(pages)
	var total int64
	for _, g := range groups {
		pd := bd.pageData(tagURL(g.name))
		pd.Tag = g.name
		pd.Pages = g.pages

		var buf bytes.Buffer
		if err := bd.tmplIndex.ExecuteTemplate(&buf, config.TemplateLayout, pd); err != nil {
			return 0, total, fmt.Errorf("error executing tag template for %s: %w", g.name, err)
		}
		n, err := bd.write(TagPath(g.name), buf.Bytes())
		total += n
		if err != nil {
			return 0, total, err
		}
	}
	return len(groups), total, nil
}

// writeFeed writes the Atom feed of the newest pages. Feed links must be
// absolute, so without a base URL no feed is written and an old one is
// removed.
func (bd *build) writeFeed(pages []*model.Page) (int64, error) {
	site := config.AppConfig.Site
	if site.BaseURL == "" {
		siteLogger.Debug().Msg("No base URL configured, skipping the feed")
		return 0, bd.remove(FeedPath)
	}
	base := strings.TrimSuffix(site.BaseURL, "/")

	entries := pages
	if n := site.FeedEntries; n > 0 && len(entries) > n {
		entries = entries[:n]
	}

	feed := &feeds.Feed{
		Title:       site.Name,
		Description: site.Description,
		Link:        &feeds.Link{Href: base + "/"},
		Id:          base + "/",
	}
	if author := config.AppConfig.Meta.Author; author != "" {
		feed.Author = &feeds.Author{Name: author}
	}

	for _, p := range entries {
		out := render.RenderMarkdownCached(p.Markdown, p.MDContentHash, bd.syntaxTheme)
		link := base + p.URL()
		feed.Items = append(feed.Items, &feeds.Item{
			Id:      link,
			Title:   p.GetTitle(),
			Link:    &feeds.Link{Href: link},
			Created: p.CreatedDate,
			Updated: lastChanged(p),
			Content: string(out.HTML),
		})
		if u := lastChanged(p); u.After(feed.Updated) {
			feed.Updated = u
		}
	}

	atom, err := feed.ToAtom()
	if err != nil {
		return 0, fmt.Errorf("error generating feed: %w", err)
	}
	return bd.write(FeedPath, []byte(atom))
}

func lastChanged(p *model.Page) time.Time {
	if p.ModifiedDate.After(p.CreatedDate) {
		return p.ModifiedDate
	}
	return p.CreatedDate
}
