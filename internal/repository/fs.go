package repository

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/debemdeboas/notebook/internal/cache"
	"github.com/debemdeboas/notebook/internal/config"
	"github.com/debemdeboas/notebook/internal/model"
	"github.com/debemdeboas/notebook/internal/util"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

type FSPageRepository struct { // implements PageRepository
	fs   afero.Fs
	root string

	includeDrafts bool
	pollInterval  time.Duration
	debounce      time.Duration

	pagesCache *cache.Cache[model.PageID, *model.Page]

	mu          sync.RWMutex
	pagesSorted []*model.Page

	reloadNotifier func(model.PageID)
}

type FSOption func(*FSPageRepository)

func WithDrafts(include bool) FSOption {
	return func(r *FSPageRepository) { r.includeDrafts = include }
}

// WithPollInterval sets the rescan period used when the filesystem cannot
// be watched.
func WithPollInterval(d time.Duration) FSOption {
	return func(r *FSPageRepository) { r.pollInterval = d }
}

func NewFSPageRepository(fsys afero.Fs, root string, opts ...FSOption) *FSPageRepository {
	r := &FSPageRepository{
		fs:           fsys,
		root:         root,
		pollInterval: time.Second,
		debounce:     100 * time.Millisecond,
		pagesCache:   cache.NewCache[model.PageID, *model.Page](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *FSPageRepository) SetReloadNotifier(notifier func(model.PageID)) {
	r.reloadNotifier = notifier
}

func (r *FSPageRepository) notifyPageReload(id model.PageID) {
	if r.reloadNotifier != nil {
		r.reloadNotifier(id)
	}
}

func (r *FSPageRepository) Init() error {
	pages, pageMap, err := r.GetPages()
	if err != nil {
		return fmt.Errorf("loading pages from %s: %w", r.root, err)
	}
	r.store(pages, pageMap)
	return nil
}

func (r *FSPageRepository) store(pages []*model.Page, pageMap map[model.PageID]*model.Page) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pagesSorted = pages
	r.pagesCache.Clear()
	for id, p := range pageMap {
		r.pagesCache.Set(id, p)
	}
}

func (r *FSPageRepository) GetPageList() []*model.Page {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pagesSorted
}

func (r *FSPageRepository) GetPages() ([]*model.Page, map[model.PageID]*model.Page, error) {
	var pages []*model.Page
	pageMap := make(map[model.PageID]*model.Page)

	err := afero.Walk(r.fs, r.root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), config.MarkdownExt) {
			return nil
		}

		page, err := r.loadPage(p, info)
		if err != nil {
			return err
		}

		if page.Draft() && !r.includeDrafts {
			repoLogger.Debug().Str("path", page.Path).Msg("Skipping draft")
			return nil
		}
		if prev, dup := pageMap[page.ID]; dup {
			repoLogger.Warn().
				Str("slug", page.Slug).
				Str("path", page.Path).
				Str("kept", prev.Path).
				Msg("Duplicate page slug, keeping the first")
			return nil
		}

		pages = append(pages, page)
		pageMap[page.ID] = page
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	slices.SortStableFunc(pages, func(a, b *model.Page) int {
		if c := -a.CreatedDate.Compare(b.CreatedDate); c != 0 {
			return c
		}
		return strings.Compare(a.Slug, b.Slug)
	})

	return pages, pageMap, nil
}

func (r *FSPageRepository) loadPage(p string, info fs.FileInfo) (*model.Page, error) {
	mdContent, err := afero.ReadFile(r.fs, p)
	if err != nil {
		return nil, err
	}

	rel, err := filepath.Rel(r.root, p)
	if err != nil {
		rel = info.Name()
	}
	rel = filepath.ToSlash(rel)
	name := strings.TrimSuffix(info.Name(), config.MarkdownExt)

	page := &model.Page{
		Title:         name,
		Path:          rel,
		Markdown:      mdContent,
		MDContentHash: util.ContentHash(mdContent),
		CreatedDate:   info.ModTime(),
		ModifiedDate:  info.ModTime(),
	}

	slug := util.Slugify(rel)
	if fm, err := util.GetFrontMatter(mdContent); err == nil {
		page.Info = fm
		if fm.Title != "" {
			page.Title = fm.Title
		}
		if !fm.Date.IsZero() {
			page.CreatedDate = fm.Date
		}
		if fm.Slug != "" {
			slug = util.Slugify(fm.Slug)
		}
	}
	if dir := path.Dir(rel); dir != "." {
		slug = dir + "/" + slug
	}

	page.Slug = slug
	page.ID = model.PageID(slug)
	return page, nil
}

func (r *FSPageRepository) ReadPage(id model.PageID) (*model.Page, error) {
	if page, ok := r.pagesCache.Get(id); ok && page.Markdown != nil {
		return page, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPageNotFound, id)
}

func (r *FSPageRepository) Reload() ([]model.PageID, error) {
	pages, pageMap, err := r.GetPages()
	if err != nil {
		return nil, err
	}

	var changed []model.PageID
	for _, page := range r.GetPageList() {
		newPage, ok := pageMap[page.ID]
		switch {
		case !ok:
			repoLogger.Info().Str("page_id", string(page.ID)).Msg("Page removed")
			changed = append(changed, page.ID)
		case newPage.MDContentHash != page.MDContentHash:
			repoLogger.Info().
				Str("page_id", string(page.ID)).
				Str("title", newPage.Title).
				Msg("Reloading page")
			changed = append(changed, page.ID)
		}
	}
	for _, page := range pages {
		if _, ok := r.pagesCache.Get(page.ID); !ok {
			repoLogger.Info().Str("page_id", string(page.ID)).Msg("New page detected")
			changed = append(changed, page.ID)
		}
	}

	r.store(pages, pageMap)
	for _, id := range changed {
		r.notifyPageReload(id)
	}
	return changed, nil
}

// Watch uses fsnotify when the repository reads the OS filesystem and
// falls back to polling otherwise.
func (r *FSPageRepository) Watch(ctx context.Context) error {
	if _, ok := r.fs.(*afero.OsFs); !ok {
		return r.poll(ctx)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		repoLogger.Warn().Err(err).Msg("File watching unavailable, polling instead")
		return r.poll(ctx)
	}
	defer watcher.Close()

	if err := r.addWatches(watcher); err != nil {
		return err
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			repoLogger.Trace().Str("event", ev.String()).Msg("Source changed")
			if ev.Has(fsnotify.Create) {
				if info, err := r.fs.Stat(ev.Name); err == nil && info.IsDir() {
					if err := watcher.Add(ev.Name); err != nil {
						repoLogger.Warn().Err(err).Str("dir", ev.Name).Msg("Error watching directory")
					}
				}
			}
			// Editors write in bursts; reload once per burst.
			pending = time.After(r.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			repoLogger.Error().Err(err).Msg("Watcher error")
		case <-pending:
			pending = nil
			if _, err := r.Reload(); err != nil {
				repoLogger.Error().Err(err).Msg("Error reloading pages")
			}
		}
	}
}

func (r *FSPageRepository) addWatches(watcher *fsnotify.Watcher) error {
	return afero.Walk(r.fs, r.root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

func (r *FSPageRepository) poll(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Reload(); err != nil {
				repoLogger.Error().Err(err).Msg("Error reloading pages")
			}
		}
	}
}
