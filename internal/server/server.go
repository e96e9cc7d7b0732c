// Package server is the development server: it serves the built site,
// rebuilds on source changes and pushes reload events to open pages.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/debemdeboas/notebook/internal/cache"
	"github.com/debemdeboas/notebook/internal/callout"
	"github.com/debemdeboas/notebook/internal/config"
	"github.com/debemdeboas/notebook/internal/expand"
	"github.com/debemdeboas/notebook/internal/model"
	"github.com/debemdeboas/notebook/internal/publish"
	"github.com/debemdeboas/notebook/internal/render"
	"github.com/debemdeboas/notebook/internal/repository"
	"github.com/debemdeboas/notebook/internal/routes"
	"github.com/debemdeboas/notebook/internal/site"
	"github.com/debemdeboas/notebook/internal/sse"
	"github.com/debemdeboas/notebook/internal/theme"
	"github.com/debemdeboas/notebook/internal/util/compression"
)

var serverLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	serverLogger = l
}

const reloadMsg = "reload"

// Builder rebuilds the site into the served output.
type Builder interface {
	Build(ctx context.Context) (*site.Report, error)
}

type Server struct {
	out     afero.Fs
	repo    repository.PageRepository
	builder Builder
	clients *sse.SSEClients

	mu      sync.Mutex
	pending map[model.PageID]struct{}
	changed chan struct{}
}

// New serves out, which the builder writes into. The server registers
// itself as the repository's reload notifier.
func New(out afero.Fs, repo repository.PageRepository, builder Builder) *Server {
	s := &Server{
		out:     out,
		repo:    repo,
		builder: builder,
		clients: sse.NewSSEClients(),
		pending: make(map[model.PageID]struct{}),
		changed: make(chan struct{}, 1),
	}
	repo.SetReloadNotifier(s.handleReloadPage)
	return s
}

func (s *Server) Clients() *sse.SSEClients {
	return s.clients
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(routes.RobotsPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, config.CTypeText)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nDisallow:"))
	})
	mux.HandleFunc(routes.PartialsExpand, s.serveExpand)
	mux.HandleFunc(routes.PartialsPreview, servePreview)
	mux.HandleFunc(routes.SSEPath, s.eventsHandler)
	mux.HandleFunc(routes.RootPath, s.serveOutput)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == routes.RobotsPath {
			cacheIt(mux.ServeHTTP)(w, r)
			return
		}
		cacheIt(secureHeaders(mux.ServeHTTP))(w, r)
	})
}

// Run watches the source, rebuilds on change and serves addr until ctx is
// done.
func (s *Server) Run(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := s.repo.Watch(ctx); err != nil {
			serverLogger.Error().Err(err).Msg("Source watcher stopped")
		}
	}()
	go s.rebuildLoop(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdown)
	}()

	serverLogger.Info().Str("addr", "http://"+addr).Msg("Serving")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) handleReloadPage(id model.PageID) {
	if page, err := s.repo.ReadPage(id); err == nil {
		render.WarmCache(page.Markdown, page.MDContentHash, theme.SiteSyntaxTheme())
	}

	s.mu.Lock()
	s.pending[id] = struct{}{}
	s.mu.Unlock()

	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *Server) takePending() []model.PageID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]model.PageID, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	clear(s.pending)
	return ids
}

func (s *Server) rebuildLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.changed:
			s.Rebuild(ctx, s.takePending())
		}
	}
}

// Rebuild builds the site and tells the readers of the index and of every
// page that changed to reload. When the build rewrote every page, all
// readers reload.
func (s *Server) Rebuild(ctx context.Context, ids []model.PageID) {
	report, err := s.builder.Build(ctx)
	if err != nil {
		serverLogger.Error().Err(err).Msg("Rebuild failed")
		return
	}
	for _, w := range report.Warnings {
		serverLogger.Warn().Str("warning", w.String()).Msg("Callout diagnostic")
	}

	if report.Rebuilt() {
		sent := s.clients.BroadcastAll(reloadMsg)
		serverLogger.Info().Int("pages", report.Built).Int("clients", sent).Msg("Rebuilt everything")
		return
	}

	changed := lo.Uniq(append(slices.Clone(ids), report.Pages...))
	sent := s.clients.Broadcast("", reloadMsg)
	for _, id := range changed {
		sent += s.clients.Broadcast(id, reloadMsg)
	}
	serverLogger.Info().Int("pages", len(changed)).Int("clients", sent).Msg("Rebuilt")
}

// serveExpand answers /partials/expand/<slug>/<id> with the expansion slot
// markup the page would show after hovering a trigger for id.
func (s *Server) serveExpand(w http.ResponseWriter, r *http.Request) {
	rest := r.PathValue("page")
	i := strings.LastIndex(rest, "/")
	if i <= 0 {
		http.NotFound(w, r)
		return
	}
	slug, id := rest[:i], rest[i+1:]
	if !callout.ValidID(id) || path.Clean("/"+slug) != "/"+slug {
		http.NotFound(w, r)
		return
	}

	f, err := s.out.Open(site.PagePath(slug))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	doc, err := expand.Parse(f, site.Selectors())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	c := doc.Controller(expand.WithLogger(serverLogger))
	if err := c.Expand(id); err != nil {
		serverLogger.Debug().Err(err).Str("page", slug).Str("id", id).Msg("Expansion not available")
		http.NotFound(w, r)
		return
	}

	slot, err := doc.SlotHTML()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(slot))
}

func servePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	content := r.FormValue("content")
	if content == "" {
		content = "Start typing in the editor to see a preview here."
	}

	out := render.RenderMarkdown([]byte(content), theme.SiteSyntaxTheme())

	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(http.StatusOK)
	w.Write(out.HTML)
}

// serveOutput serves the built site, preferring a precompressed sibling the
// client accepts.
func (s *Server) serveOutput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	if strings.HasSuffix(r.URL.Path, "/") {
		name = path.Join(name, config.PageFile)
	} else if info, err := s.out.Stat(name); err == nil && info.IsDir() {
		http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
		return
	}

	info, err := s.out.Stat(name)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	contentType, _ := publish.ContentHeaders(name)
	w.Header().Set(config.HCType, contentType)
	w.Header().Add(config.HVary, config.HAcceptEncoding)

	file := name
	accepted := r.Header.Get(config.HAcceptEncoding)
	for _, c := range compression.All() {
		if !acceptsEncoding(accepted, c.Encoding()) {
			continue
		}
		if ok, _ := afero.Exists(s.out, name+c.Extension()); ok {
			file = name + c.Extension()
			w.Header().Set(config.HContentEncoding, c.Encoding())
			break
		}
	}

	f, err := s.out.Open(file)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	http.ServeContent(w, r, name, info.ModTime(), f)
}

func acceptsEncoding(header, encoding string) bool {
	for _, part := range strings.Split(header, ",") {
		token, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(token), encoding) {
			continue
		}
		return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
	}
	return false
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	pageID := model.PageID(r.URL.Query().Get("page"))

	w.Header().Set(config.HCType, config.CTypeEventStream)
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
	flusher.Flush()

	client := sse.NewClient(pageID)
	s.clients.Add(client)
	serverLogger.Debug().Str("page", string(pageID)).Msg("SSE client connected")

	defer func() {
		s.clients.Delete(client)
		serverLogger.Debug().Str("page", string(pageID)).Msg("SSE client disconnected")
	}()

	notify := r.Context().Done()
	for {
		select {
		case msg, ok := <-client.Msg:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-notify:
			return
		}
	}
}

func cacheIt(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "no-cache")

		// Static files are requested with their content hash.
		if hash, ok := cache.GetStaticHash(r.URL.Path); ok {
			w.Header().Set(config.HCacheControl, "public, max-age=3600")
			w.Header().Set(config.HETag, `"`+hash+`"`)
		}

		h(w, r)
	}
}

func secureHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		h(w, r)
	}
}
