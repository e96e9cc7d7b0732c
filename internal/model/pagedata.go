package model

import (
	"github.com/debemdeboas/notebook/internal/config"
)

type PageData struct {
	SiteName        string
	SiteTagline     string
	SiteDescription string
	SiteKeywords    []string
	SiteAuthor      string
	Favicon         string

	PageURL string
	// Site-relative address of the Atom feed; empty when no feed is written.
	FeedURL string

	Theme string

	// Path of the syntax stylesheet including its cache-busting query.
	SyntaxCSSPath string

	LiveReload bool

	// Attribute contract between the rendered page and static/expand.js.
	TriggerAttribute string
	SourceSelector   string
	SlotSelector     string
	WrapperClass     string

	Page  *Page
	Pages []*Page
	// Set on tag listings.
	Tag string
}

func NewPageData(pageURL string) *PageData {
	cfg := config.AppConfig
	return &PageData{
		SiteName:         cfg.Site.Name,
		SiteTagline:      cfg.Site.Tagline,
		SiteDescription:  cfg.Site.Description,
		SiteKeywords:     cfg.Meta.Keywords,
		SiteAuthor:       cfg.Meta.Author,
		Favicon:          cfg.Meta.Favicon,
		PageURL:          pageURL,
		FeedURL:          feedURL(cfg.Site.BaseURL),
		Theme:            cfg.Theme.Default,
		LiveReload:       cfg.Server.LiveReload,
		TriggerAttribute: cfg.Callouts.TriggerAttribute,
		SourceSelector:   cfg.Callouts.SourceSelector,
		SlotSelector:     cfg.Callouts.SlotSelector,
		WrapperClass:     cfg.Callouts.WrapperClass,
	}
}

func (pd *PageData) IsPage() bool {
	return pd.Page != nil
}

// Title is the document title: "<page> | <site>" on pages, "#<tag> | <site>"
// on tag listings and the site name elsewhere.
func (pd *PageData) Title() string {
	switch {
	case pd.Page != nil:
		return pd.Page.GetTitle() + " | " + pd.SiteName
	case pd.Tag != "":
		return "#" + pd.Tag + " | " + pd.SiteName
	default:
		return pd.SiteName
	}
}

func feedURL(baseURL string) string {
	if baseURL == "" {
		return ""
	}
	return "/" + config.FeedFile
}
