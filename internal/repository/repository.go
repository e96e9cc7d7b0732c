// Package repository loads pages from the content directory and records
// what each build emitted.
package repository

import (
	"context"
	"errors"

	"github.com/debemdeboas/notebook/internal/model"
	"github.com/rs/zerolog"
)

var ErrPageNotFound = errors.New("page not found")

var repoLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

type PageRepository interface {
	Init() error
	GetPages() ([]*model.Page, map[model.PageID]*model.Page, error)
	GetPageList() []*model.Page
	ReadPage(id model.PageID) (*model.Page, error)

	// Reload rescans the source and reports the pages whose content changed.
	Reload() ([]model.PageID, error)
	// Watch reloads on source changes until ctx is done.
	Watch(ctx context.Context) error

	// SetReloadNotifier sets a function that will be called for every page
	// that changed on reload.
	SetReloadNotifier(notifier func(model.PageID))
}
