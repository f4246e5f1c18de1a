// Package main is the kensaku CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyperjump/kensaku/internal/cache"
	kcli "github.com/hyperjump/kensaku/internal/cli"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/extract"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/scanner"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/server"
	"github.com/hyperjump/kensaku/internal/storage"
	"github.com/hyperjump/kensaku/internal/watcher"
	"github.com/hyperjump/kensaku/pkg/searcherr"
	"github.com/hyperjump/kensaku/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var version = "dev"

// defaultConfigName is looked up in the working directory when --config is not given.
const defaultConfigName = "kensaku.yaml"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kensaku: %v\n", err)
		os.Exit(searcherr.ExitCode(err))
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "kensaku",
		Usage:     "Rank files under a directory by semantic similarity to a query",
		UsageText: "kensaku [global options] --query <text> --path <dir>",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: append(commonFlags(),
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "text to search for",
			},
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Usage:   "directory to scan",
			},
			&cli.Float64Flag{
				Name:    "threshold",
				Aliases: []string{"t"},
				Usage:   "minimum similarity a result must exceed (default from config, 0.5)",
			},
			&cli.BoolFlag{
				Name:    "show-score",
				Aliases: []string{"s"},
				Usage:   "print the similarity score after each path",
			},
			&cli.BoolFlag{
				Name:  "from-cache",
				Usage: "search every text in the cache instead of scanning a directory",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "output format: plain or json",
				Value: string(kcli.OutputPlain),
			},
		),
		Action:       searchCommand,
		OnUsageError: usageError,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the search API over HTTP",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "host", Usage: "listen host (default from config)"},
					&cli.IntFlag{Name: "port", Usage: "listen port (default from config)"},
				},
			},
			{
				Name:      "watch",
				Usage:     "Re-run the search whenever files under --path change",
				UsageText: "kensaku [global options] --query <text> --path <dir> watch",
				Action:    watchCommand,
			},
			{
				Name:  "cache",
				Usage: "Inspect the embedding cache",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List cached entries",
						Action: cacheListCommand,
					},
					{
						Name:   "stats",
						Usage:  "Show entry count and disk usage",
						Action: cacheStatsCommand,
					},
				},
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(c *cli.Context) error {
					fmt.Fprintf(c.App.Writer, "kensaku version %s\n", version)
					return nil
				},
			},
		},
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "config file path (default ./" + defaultConfigName + " when present)",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
		&cli.StringFlag{
			Name:  "cache",
			Usage: "cache backend: none, memory, sqlite, badger or redis (default from config)",
		},
	}
}

func usageError(c *cli.Context, err error, _ bool) error {
	return searcherr.Wrap(err, searcherr.CodeSearchRequestInvalid, "invalid usage")
}

// loadConfig resolves the config: --config when given, then ./kensaku.yaml
// when present, then built-in defaults.
func loadConfig(c *cli.Context) (*config.Config, string, error) {
	path := c.String("config")
	if path == "" {
		if _, err := os.Stat(defaultConfigName); err == nil {
			path = defaultConfigName
		}
	}
	var cfg *config.Config
	if path == "" {
		cfg = config.Default()
	} else {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, "", searcherr.Wrap(err, searcherr.CodeConfigLoadFailure, "resolve config path", searcherr.FieldPath(path))
		}
		if cfg, err = config.Load(abs); err != nil {
			return nil, "", err
		}
		path = abs
	}
	if backend := c.String("cache"); backend != "" {
		if err := cfg.SetCacheBackend(backend); err != nil {
			return nil, "", err
		}
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}
	return cfg, path, nil
}

// Components holds the long-lived pieces shared by every command.
type Components struct {
	Config   *config.Config
	Logger   *zap.Logger
	Embedder embedding.Embedder
	Cache    *cache.Cache
	Engine   *search.Engine
}

// Close releases the embedder, the cache store and flushes the logger.
func (c *Components) Close() {
	if c.Embedder != nil {
		if err := c.Embedder.Close(); err != nil {
			c.Logger.Warn("embedder close failed", zap.Error(err))
		}
	}
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			c.Logger.Warn("cache close failed", zap.Error(err))
		}
	}
	_ = c.Logger.Sync()
}

func initializeComponents(c *cli.Context) (*Components, error) {
	cfg, cfgPath, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", cfgPath),
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("cache", cfg.Cache.Backend))

	comp := &Components{Config: cfg, Logger: logger}

	comp.Embedder, err = embedding.New(cfg.Embedding, logger)
	if err != nil {
		comp.Close()
		return nil, err
	}

	store, err := storage.Open(cfg.Cache, logger)
	if err != nil {
		comp.Close()
		return nil, searcherr.Wrap(err, searcherr.CodeCacheStoreFailure, "open cache",
			searcherr.Field("backend", cfg.Cache.Backend))
	}
	if store != nil {
		comp.Cache = cache.New(store,
			cache.WithNamespace(cfg.Cache.Namespace),
			cache.WithLogger(logger))
	}

	sc := scanner.New(
		scanner.WithLogger(logger),
		scanner.WithWorkers(cfg.Scan.Workers),
		scanner.WithExtractor(extract.NewExtractor(cfg.Scan.ExtractDocuments)),
	)
	comp.Engine = search.NewEngine(sc, comp.Embedder,
		search.WithCache(comp.Cache),
		search.WithThreshold(cfg.Search.ThresholdOrDefault()),
		search.WithEmbedTimeout(time.Duration(cfg.Embedding.TimeoutSecs)*time.Second),
		search.WithLogger(logger))
	return comp, nil
}

// buildQuery turns the root flags into a search query. It returns nil when
// neither a path nor --from-cache was given.
func buildQuery(c *cli.Context) *models.SearchQuery {
	q := &models.SearchQuery{
		Query:     c.String("query"),
		Path:      c.String("path"),
		FromCache: c.Bool("from-cache"),
	}
	if q.Path == "" && !q.FromCache {
		return nil
	}
	if c.IsSet("threshold") {
		t := c.Float64("threshold")
		q.Threshold = &t
	}
	return q
}

func outputOptions(c *cli.Context, cfg *config.Config) (kcli.Options, error) {
	format, err := kcli.ParseFormat(c.String("output"))
	if err != nil {
		return kcli.Options{}, searcherr.Wrap(err, searcherr.CodeSearchRequestInvalid, "invalid --output")
	}
	return kcli.Options{
		ShowScore: c.Bool("show-score") || cfg.Search.ShowScore,
		Format:    format,
	}, nil
}

func searchCommand(c *cli.Context) error {
	if c.Args().Present() {
		return searcherr.New(searcherr.CodeSearchRequestInvalid,
			fmt.Sprintf("unexpected argument %q (use --query and --path)", c.Args().First()))
	}
	query := buildQuery(c)
	if query == nil {
		return nil
	}
	comp, err := initializeComponents(c)
	if err != nil {
		return err
	}
	defer comp.Close()

	opts, err := outputOptions(c, comp.Config)
	if err != nil {
		return err
	}
	return runSearch(c.Context, comp, query, c.App.Writer, opts)
}

func runSearch(ctx context.Context, comp *Components, query *models.SearchQuery, w io.Writer, opts kcli.Options) error {
	resp, err := comp.Engine.Search(ctx, query)
	if err != nil {
		return err
	}
	return kcli.WriteResults(w, resp.Results, opts)
}

func serveCommand(c *cli.Context) error {
	comp, err := initializeComponents(c)
	if err != nil {
		return err
	}
	defer comp.Close()

	cfg := comp.Config
	if c.IsSet("host") {
		cfg.Server.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}

	srv := server.NewServer(comp.Engine, comp.Cache, cfg, comp.Logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-c.Context.Done():
	}
	comp.Logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func watchCommand(c *cli.Context) error {
	query := buildQuery(c)
	if query == nil || query.FromCache {
		return searcherr.New(searcherr.CodeSearchRequestInvalid, "watch requires --path")
	}
	comp, err := initializeComponents(c)
	if err != nil {
		return err
	}
	defer comp.Close()

	opts, err := outputOptions(c, comp.Config)
	if err != nil {
		return err
	}
	w := c.App.Writer
	run := func() {
		fmt.Fprintf(w, "# %s\n", time.Now().Format(time.TimeOnly))
		if err := runSearch(c.Context, comp, query, w, opts); err != nil {
			comp.Logger.Error("search failed", zap.Error(err))
		}
	}
	run()

	watchOpts := []watcher.WatcherOption{
		watcher.WithLogger(comp.Logger),
		watcher.WithDebounce(time.Duration(comp.Config.Watch.DebounceMillis) * time.Millisecond),
	}
	watchSvc := watcher.NewWatcher(query.Path, func(paths []string) {
		comp.Logger.Debug("change detected", zap.Int("paths", len(paths)))
		run()
	}, watchOpts...)
	if err := watchSvc.Start(c.Context); err != nil {
		return searcherr.Wrap(err, searcherr.CodeScanIOFailure, "start watcher", searcherr.FieldPath(query.Path))
	}
	defer watchSvc.Stop()

	<-c.Context.Done()
	return nil
}

func cacheListCommand(c *cli.Context) error {
	comp, err := initializeComponents(c)
	if err != nil {
		return err
	}
	defer comp.Close()
	if comp.Cache == nil {
		return searcherr.New(searcherr.CodeCacheNotConfigured, "no cache backend configured (use --cache)")
	}
	format, err := kcli.ParseFormat(c.String("output"))
	if err != nil {
		return searcherr.Wrap(err, searcherr.CodeSearchRequestInvalid, "invalid --output")
	}
	entries, err := comp.Cache.List(c.Context, comp.Embedder.Dimensions())
	if err != nil {
		return err
	}
	return kcli.WriteEntries(c.App.Writer, entries, format)
}

func cacheStatsCommand(c *cli.Context) error {
	comp, err := initializeComponents(c)
	if err != nil {
		return err
	}
	defer comp.Close()
	if comp.Cache == nil {
		return searcherr.New(searcherr.CodeCacheNotConfigured, "no cache backend configured (use --cache)")
	}
	n, err := comp.Cache.Count(c.Context)
	if err != nil {
		return err
	}
	cacheCfg := comp.Config.Cache
	location := storage.Path(cacheCfg)
	if cacheCfg.Backend == config.CacheRedis {
		location = cacheCfg.RedisAddr
	}
	var diskBytes int64
	if path := storage.Path(cacheCfg); path != "" {
		if diskBytes, err = storage.CacheDiskUsage(path); err != nil {
			comp.Logger.Warn("disk usage unavailable", zap.String("path", path), zap.Error(err))
		}
	}
	kcli.WriteStats(c.App.Writer, cacheCfg.Backend, location, n, diskBytes)
	return nil
}
