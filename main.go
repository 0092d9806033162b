package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scipunch/podfeed/cache"
	"github.com/scipunch/podfeed/config"
	"github.com/scipunch/podfeed/feed"
	"github.com/scipunch/podfeed/fetcher"
	"github.com/scipunch/podfeed/filter"
	"github.com/scipunch/podfeed/logging"
	"github.com/scipunch/podfeed/parser"
	"github.com/scipunch/podfeed/report"
)

func main() {
	var (
		cfgPath    string
		cleanCache bool
		offline    bool
		format     string
		pdf        bool
		debug      bool
		jsonLogs   bool
	)
	flag.StringVar(&cfgPath, "config", config.DefaultPath(), "path to a TOML config")
	flag.BoolVar(&cleanCache, "clean", false, "remove all cache entries")
	flag.BoolVar(&offline, "offline", false, "use cached feed documents only")
	flag.StringVar(&format, "format", "html", "output format: html or json")
	flag.BoolVar(&pdf, "pdf", false, "also print the HTML output to PDF")
	flag.BoolVar(&debug, "debug", os.Getenv("DEBUG") != "", "enable debug logging")
	flag.BoolVar(&jsonLogs, "json-logs", false, "always log as JSON")
	flag.Parse()

	sync := logging.Setup(logging.Options{Debug: debug, JSON: jsonLogs})
	defer sync()

	if format != "html" && format != "json" {
		log.Fatalf("unknown output format '%s'", format)
	}

	// Read config and create if default is missing
	conf, err := config.Read(cfgPath)
	if errors.Is(err, os.ErrNotExist) && cfgPath == config.DefaultPath() {
		if err := config.Write(cfgPath, conf); err != nil {
			log.Fatalf("failed to write default config with %s", err)
		}
	} else if err != nil {
		log.Fatalf("failed to read config with %s", err)
	}

	filterPipeline, err := filter.NewFilterPipeline(conf.Filters)
	if err != nil {
		log.Fatalf("failed to initialize filters: %s", err)
	}
	if len(conf.Filters) > 0 {
		slog.Info("initialized filters", "count", len(conf.Filters))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := cache.NewCache(conf.DatabasePath)
	if err != nil {
		log.Fatalf("failed to initialize cache: %v", err)
	}
	defer c.Close()

	if cleanCache {
		if err := c.Clear(); err != nil {
			log.Fatalf("failed to clear cache: %v", err)
		}
		slog.Info("cache cleared successfully")
		return
	}

	stats, err := c.Stats()
	if err != nil {
		slog.Warn("failed to get cache stats", "error", err)
	} else {
		slog.Info("cache initialized",
			"document_entries", stats.DocumentEntries,
			"episode_entries", stats.EpisodeEntries)
	}

	var resourceTypes []config.ResourceType
	for _, r := range conf.Resources {
		if r.IsEnabled() {
			resourceTypes = append(resourceTypes, r.Type())
		}
	}
	fetchers, err := fetcher.GetFetchers(resourceTypes, fetcher.Options{
		Timeout:      conf.Fetch.Timeout.Duration,
		MaxRetries:   conf.Fetch.MaxRetries,
		UserAgent:    conf.Fetch.UserAgent,
		MaxBodyBytes: conf.Fetch.MaxBodyBytes,
	})
	if err != nil {
		log.Fatalf("failed to initialize fetchers with %s", err)
	}

	svc := feed.NewService(fetchers, c,
		feed.WithStrictXML(conf.StrictXML),
		feed.WithOffline(offline),
	)

	feeds, errs := loadFeeds(ctx, svc, conf)
	if ctx.Err() != nil {
		slog.Info("interrupted by user, exiting gracefully")
		return
	}
	if len(errs) > 0 {
		slog.Error("several feeds were not loaded", "feeds", errors.Join(errs...).Error())
	}

	out := report.Report{Title: "Podcast episodes", GeneratedAt: time.Now()}
	for i, f := range feeds {
		if f == nil {
			continue
		}
		f.Episodes = applyFilters(filterPipeline, f.Episodes, conf.Resources[i].FilterNames)
		out.Feeds = append(out.Feeds, *f)
	}
	slog.Info("episodes collected", "feeds", len(out.Feeds), "episodes", out.EpisodeCount())

	if err := os.MkdirAll(conf.OutputDirectory, 0755); err != nil {
		log.Fatalf("failed to create output directory at '%s' with %s", conf.OutputDirectory, err)
	}
	outPath, err := writeReport(out, conf.OutputDirectory, format)
	if err != nil {
		log.Fatal(err)
	}
	slog.Info("report generated", "path", outPath)

	if pdf && format == "html" {
		pdfPath := filepath.Join(conf.OutputDirectory, "episodes.pdf")
		if err := report.GeneratePDF(ctx, outPath, pdfPath, report.B5); err != nil {
			slog.Error("failed to generate PDF", "error", err)
		} else {
			slog.Info("PDF file generated", "path", pdfPath)
		}
	}
}

// loadFeeds loads every enabled resource, keeping the config order.
// Failed feeds are reported and left nil.
func loadFeeds(ctx context.Context, svc *feed.Service, conf config.Config) ([]*feed.Feed, []error) {
	feeds := make([]*feed.Feed, len(conf.Resources))
	errs := make([]error, len(conf.Resources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(conf.Concurrency)
	for i, resource := range conf.Resources {
		if !resource.IsEnabled() {
			slog.Debug("skipping disabled resource", "url", resource.FeedURL)
			continue
		}
		g.Go(func() error {
			f, err := svc.Load(ctx, resource.FeedURL, resource.Type())
			if err != nil {
				errs[i] = fmt.Errorf("'%s' load failed with %w", resource.FeedURL, err)
				return nil
			}
			feeds[i] = &f
			return nil
		})
	}
	// Failures are collected per index in errs, Wait never returns one
	_ = g.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	return feeds, failed
}

func applyFilters(fp *filter.FilterPipeline, episodes []parser.Episode, names []string) []parser.Episode {
	if len(names) == 0 {
		return episodes
	}
	kept := make([]parser.Episode, 0, len(episodes))
	for _, ep := range episodes {
		if ok, reason := fp.ShouldInclude(ep, names); !ok {
			slog.Debug("episode filtered out", "title", ep.Title, "reason", reason)
			continue
		}
		kept = append(kept, ep)
	}
	return kept
}

func writeReport(r report.Report, dir, format string) (string, error) {
	path := filepath.Join(dir, "episodes."+format)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("could not create output file '%s' with %w", path, err)
	}
	defer f.Close()

	if format == "json" {
		err = report.WriteJSON(f, r)
	} else {
		err = report.Render(f, r)
	}
	if err != nil {
		return "", err
	}
	return path, f.Close()
}
