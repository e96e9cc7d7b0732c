package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/debemdeboas/notebook/internal/callout"
	"github.com/debemdeboas/notebook/internal/config"
	"github.com/debemdeboas/notebook/internal/db"
	"github.com/debemdeboas/notebook/internal/expand"
	"github.com/debemdeboas/notebook/internal/logger"
	"github.com/debemdeboas/notebook/internal/publish"
	"github.com/debemdeboas/notebook/internal/render"
	"github.com/debemdeboas/notebook/internal/repository"
	"github.com/debemdeboas/notebook/internal/server"
	"github.com/debemdeboas/notebook/internal/site"
)

var version = "dev"

var log zerolog.Logger

func main() {
	log = logger.New(config.Default().Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:    "notebook",
		Version: version,
		Usage:   "Build and serve a notebook of annotated markdown pages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"NOTEBOOK_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override logging.level from the configuration",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "render every page into the output directory",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "rebuild unchanged pages"},
				},
				Action: buildCmd,
			},
			{
				Name:  "serve",
				Usage: "build, serve and rebuild on source changes",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address (default from server.host and server.port)"},
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "rebuild unchanged pages on start"},
				},
				Action: serveCmd,
			},
			{
				Name:   "publish",
				Usage:  "upload the output directory to the configured bucket",
				Action: publishCmd,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error().Stack().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func setup(c *cli.Context) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
	}

	if err := config.LoadConfig(c.String("config")); err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	level := config.AppConfig.Logging.Level
	if l := c.String("log-level"); l != "" {
		level = l
	}
	log = logger.New(level)

	config.SetLogger(logger.Component(log, "config"))
	db.SetLogger(logger.Component(log, "db"))
	callout.SetLogger(logger.Component(log, "callout"))
	expand.SetLogger(logger.Component(log, "expand"))
	render.SetLogger(logger.Component(log, "render"))
	repository.SetLogger(logger.Component(log, "repository"))
	site.SetLogger(logger.Component(log, "site"))
	server.SetLogger(logger.Component(log, "server"))
	publish.SetLogger(logger.Component(log, "publish"))

	log.Debug().Str("config", c.String("config")).Msg("Configuration loaded")
	return nil
}

func pageRepository() (*repository.FSPageRepository, error) {
	cfg := config.AppConfig.Content
	repo := repository.NewFSPageRepository(afero.NewOsFs(), cfg.SourceDir, repository.WithDrafts(cfg.Drafts))
	if err := repo.Init(); err != nil {
		return nil, err
	}
	return repo, nil
}

func outputFs() (afero.Fs, error) {
	dir := config.AppConfig.Content.OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating output directory: %w", err)
	}
	return afero.NewBasePathFs(afero.NewOsFs(), dir), nil
}

// manifest opens the build manifest, or returns nil when incremental builds
// are disabled.
func manifest() (*repository.ManifestRepository, func(), error) {
	if !config.AppConfig.Build.Incremental {
		return nil, func() {}, nil
	}
	sqlite := db.NewSQLite(config.AppConfig.Build.ManifestPath)
	if err := sqlite.InitDb(); err != nil {
		return nil, nil, errors.Wrap(err, "failed to open the build manifest")
	}
	return repository.NewManifestRepository(sqlite), func() { sqlite.Close() }, nil
}

func newBuilder(force, liveReload bool) (*site.Builder, *repository.FSPageRepository, afero.Fs, func(), error) {
	repo, err := pageRepository()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	out, err := outputFs()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	m, closeManifest, err := manifest()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	opts := []site.Option{site.WithForce(force), site.WithLiveReload(liveReload)}
	if m != nil {
		opts = append(opts, site.WithManifest(m))
	}
	return site.NewBuilder(repo, out, opts...), repo, out, closeManifest, nil
}

func buildCmd(c *cli.Context) error {
	builder, _, _, done, err := newBuilder(c.Bool("force"), false)
	if err != nil {
		return err
	}
	defer done()

	report, err := builder.Build(c.Context)
	if err != nil {
		return errors.Wrap(err, "build failed")
	}
	report.Print(os.Stdout)
	return nil
}

func serveCmd(c *cli.Context) error {
	builder, repo, out, done, err := newBuilder(c.Bool("force"), true)
	if err != nil {
		return err
	}
	defer done()

	report, err := builder.Build(c.Context)
	if err != nil {
		return errors.Wrap(err, "initial build failed")
	}
	report.Print(os.Stdout)

	addr := c.String("addr")
	if addr == "" {
		addr = net.JoinHostPort(config.AppConfig.Server.Host, config.AppConfig.Server.Port)
	}
	return server.New(out, repo, builder).Run(c.Context, addr)
}

func publishCmd(c *cli.Context) error {
	cfg := config.AppConfig
	p, err := publish.NewS3Publisher(c.Context, cfg.Publish,
		os.Getenv("S3_ACCESS_KEY_ID"), os.Getenv("S3_SECRET_ACCESS_KEY"), cfg.Build.Workers)
	if err != nil {
		return err
	}

	report, err := p.Publish(c.Context, afero.NewOsFs(), cfg.Content.OutputDir)
	if err != nil {
		return errors.Wrapf(err, "failed to publish %s", cfg.Content.OutputDir)
	}
	fmt.Printf("Published %s files (%s) to %s\n",
		humanize.Comma(int64(report.Files)), humanize.Bytes(uint64(report.Bytes)), cfg.Publish.Bucket)
	return nil
}
