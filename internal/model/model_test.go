package model

import (
	"testing"

	"github.com/debemdeboas/notebook/internal/config"
	"github.com/debemdeboas/notebook/internal/util"
	"github.com/mmarkdown/mmark/v2/mast"
	"github.com/mmarkdown/mmark/v2/mast/reference"
)

func TestPageGetTitle(t *testing.T) {
	testCases := []struct {
		name     string
		page     *Page
		expected string
	}{
		{
			name:     "No Info returns Title field",
			page:     &Page{Title: "Direct Title"},
			expected: "Direct Title",
		},
		{
			name:     "Empty Info title returns Title field",
			page:     &Page{Title: "Direct Title", Info: &util.ExtendedTitleData{TitleData: &mast.TitleData{}}},
			expected: "Direct Title",
		},
		{
			name: "Info title wins",
			page: &Page{Title: "Direct Title", Info: &util.ExtendedTitleData{
				TitleData: &mast.TitleData{Title: "Info Title"},
			}},
			expected: "Info Title",
		},
		{
			name: "Series info is prepended",
			page: &Page{Info: &util.ExtendedTitleData{TitleData: &mast.TitleData{
				Title:      "Episode Title",
				SeriesInfo: reference.SeriesInfo{Name: "Reading", Value: "5"},
			}}},
			expected: "[Reading-5] Episode Title",
		},
		{
			name: "Partial series info is ignored",
			page: &Page{Info: &util.ExtendedTitleData{TitleData: &mast.TitleData{
				Title:      "Episode Title",
				SeriesInfo: reference.SeriesInfo{Name: "Reading"},
			}}},
			expected: "Episode Title",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.page.GetTitle(); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestPageFrontMatterAccessors(t *testing.T) {
	p := &Page{Slug: "reading-list"}
	if p.Tags() != nil || p.Draft() {
		t.Error("Expected no tags and no draft flag without front matter")
	}
	if p.URL() != "/reading-list/" {
		t.Errorf("Unexpected URL %q", p.URL())
	}

	p.Info = &util.ExtendedTitleData{TitleData: &mast.TitleData{}, Tags: []string{"books"}, Draft: true}
	if len(p.Tags()) != 1 || !p.Draft() {
		t.Errorf("Expected front matter values, got tags=%v draft=%v", p.Tags(), p.Draft())
	}
}

func TestNewPageData(t *testing.T) {
	originalConfig := config.AppConfig
	defer func() { config.AppConfig = originalConfig }()

	config.AppConfig = config.Default()
	config.AppConfig.Site.Name = "Test Site"
	config.AppConfig.Meta.Author = "Test Author"
	config.AppConfig.Callouts.SlotSelector = "#panel"

	pd := NewPageData("/notes/")

	if pd.SiteName != "Test Site" || pd.SiteAuthor != "Test Author" {
		t.Errorf("Expected site values from config, got %q %q", pd.SiteName, pd.SiteAuthor)
	}
	if pd.PageURL != "/notes/" {
		t.Errorf("Expected PageURL '/notes/', got %q", pd.PageURL)
	}
	if pd.TriggerAttribute != "data-expand" || pd.SlotSelector != "#panel" {
		t.Errorf("Expected callout contract from config, got %q %q", pd.TriggerAttribute, pd.SlotSelector)
	}
	if !pd.LiveReload {
		t.Error("Expected live reload flag from config")
	}

	if pd.IsPage() || pd.Title() != "Test Site" {
		t.Errorf("Expected index page data, got title %q", pd.Title())
	}

	if pd.FeedURL != "" {
		t.Errorf("Expected no feed without a base URL, got %q", pd.FeedURL)
	}

	pd.Tag = "reading"
	if pd.Title() != "#reading | Test Site" {
		t.Errorf("Expected tag listing title, got %q", pd.Title())
	}

	pd.Page = &Page{Title: "Notes"}
	if !pd.IsPage() || pd.Title() != "Notes | Test Site" {
		t.Errorf("Expected page title, got %q", pd.Title())
	}

	config.AppConfig.Site.BaseURL = "https://notes.example.com"
	if got := NewPageData("/").FeedURL; got != "/feed.xml" {
		t.Errorf("Expected feed URL '/feed.xml', got %q", got)
	}
}
