// Command repofetch fetches channel repodata through the cache and reports
// record counts and timings. It is mainly a smoke-test and demo tool.
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
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	charmlog "github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/volans-io/repodata"
)

type config struct {
	Channel   string        `env:"REPOFETCH_CHANNEL" envDefault:"https://conda.anaconda.org/conda-forge"`
	Name      string        `env:"REPOFETCH_NAME"`
	Platforms string        `env:"REPOFETCH_PLATFORMS" envDefault:"linux-64,noarch"`
	TTL       time.Duration `env:"REPOFETCH_TTL" envDefault:"5m"`
	CacheDir  string        `env:"REPOFETCH_CACHE_DIR"`
	Repeat    int           `env:"REPOFETCH_REPEAT" envDefault:"1"`
	Verbose   bool          `env:"REPOFETCH_VERBOSE"`
}

// parseConfig reads defaults from the environment, then lets flags override.
func parseConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	flag.StringVar(&cfg.Channel, "channel", cfg.Channel, "channel base URL")
	flag.StringVar(&cfg.Name, "name", cfg.Name, "channel name (default: derived from the URL)")
	flag.StringVar(&cfg.Platforms, "platforms", cfg.Platforms, "comma-separated platform subdirs")
	flag.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "how long parsed repodata stays cached in memory")
	flag.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "disk staging directory (default: user cache dir)")
	flag.IntVar(&cfg.Repeat, "repeat", cfg.Repeat, "fetch rounds per platform")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "debug logging")
	flag.Parse()
	return cfg, nil
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		log.Fatal(err)
	}

	level := charmlog.InfoLevel
	if cfg.Verbose {
		level = charmlog.DebugLevel
	}
	logger := slog.New(charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Level:           level,
	}))

	if cfg.CacheDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			cfg.CacheDir = filepath.Join(dir, "repofetch")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("repofetch failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	platforms := parsePlatforms(cfg.Platforms)
	if len(platforms) == 0 {
		return errors.New("no platforms given")
	}

	channel, err := repodata.NewChannel(cfg.Name, cfg.Channel)
	if err != nil {
		return err
	}

	cache, err := repodata.New(cfg.TTL, cfg.CacheDir,
		repodata.WithLogger(logger),
		repodata.WithUserAgent("repofetch"),
	)
	if err != nil {
		return err
	}

	logger.Info("fetching repodata",
		"channel", channel.Name,
		"url", channel.BaseURL,
		"platforms", cfg.Platforms,
		"ttl", cfg.TTL,
		"cache_dir", cfg.CacheDir,
	)

	for round := 1; round <= cfg.Repeat; round++ {
		for _, platform := range platforms {
			start := time.Now()
			records, err := cache.Get(ctx, channel, platform)
			if err != nil {
				return fmt.Errorf("fetch %s/%s: %w", channel.Name, platform, err)
			}

			var indexed uint64
			for _, rec := range records {
				indexed += rec.Size
			}
			logger.Info("fetched subdir",
				"round", round,
				"platform", platform,
				"records", humanize.Comma(int64(len(records))),
				"indexed_size", humanize.Bytes(indexed),
				"elapsed", time.Since(start).Round(time.Millisecond),
			)
		}
		cache.GC()
	}
	return nil
}

func parsePlatforms(s string) []repodata.Platform {
	var platforms []repodata.Platform
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			platforms = append(platforms, repodata.Platform(part))
		}
	}
	return platforms
}
