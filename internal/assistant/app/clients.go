package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/restoration-assistant/internal/assistant/config"
	"github.com/yungbote/restoration-assistant/internal/assistant/media"
	"github.com/yungbote/restoration-assistant/internal/assistant/provider"
	"github.com/yungbote/restoration-assistant/internal/assistant/provider/gcpspeech"
	"github.com/yungbote/restoration-assistant/internal/assistant/provider/gcpvision"
	"github.com/yungbote/restoration-assistant/internal/assistant/provider/httpjson"
	"github.com/yungbote/restoration-assistant/internal/assistant/provider/mock"
	"github.com/yungbote/restoration-assistant/internal/assistant/provider/oaihttp"
	"github.com/yungbote/restoration-assistant/internal/data/db"
	"github.com/yungbote/restoration-assistant/internal/platform/gcp"
	"github.com/yungbote/restoration-assistant/internal/platform/logger"
	"github.com/yungbote/restoration-assistant/internal/platform/redisx"
)

// Clients holds every external connection. Nil fields are disabled.
type Clients struct {
	Redis   *goredis.Client
	Archive *gorm.DB

	Understanding provider.Understanding
	Generation    provider.Generation
	Vision        *gcpvision.Analyzer
	Speech        *gcpspeech.Transcriber
	Media         *media.Uploader
}

func wireClients(ctx context.Context, log *logger.Logger, cfg *config.Config) (*Clients, error) {
	log.Info("Wiring clients...")
	c := &Clients{}

	// Redis
	if cfg.Store.Backend == "redis" || cfg.Escalation.Notifier == "redis" {
		rdb, err := redisx.Connect(ctx, redisx.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		c.Redis = rdb
	}

	// Transcript archive
	if cfg.Archive.Driver != "" {
		gdb, err := db.Open(log, cfg.Archive.Driver, cfg.Archive.DSN)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init archive: %w", err)
		}
		c.Archive = gdb
	}

	// Text providers
	u, err := newUnderstanding(cfg.Understanding)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init understanding provider: %w", err)
	}
	c.Understanding = u
	g, err := newGeneration(cfg.Generation)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init generation provider: %w", err)
	}
	c.Generation = g

	// Gcp
	if cfg.Vision.Enabled {
		vision, err := gcpvision.New(ctx, log, cfg.Vision.MaxResults)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init vision client: %w", err)
		}
		c.Vision = vision
	}
	if cfg.Speech.Enabled {
		speech, err := gcpspeech.New(ctx, log)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init speech client: %w", err)
		}
		c.Speech = speech
	}
	if cfg.Media.Enabled() {
		up, err := media.New(ctx, log, media.Options{
			Bucket:       cfg.Media.Bucket,
			Mode:         gcp.ObjectStorageMode(cfg.Media.Mode),
			EmulatorHost: cfg.Media.EmulatorHost,
			MaxBytes:     cfg.Media.MaxBytes,
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init media storage: %w", err)
		}
		c.Media = up
	}
	return c, nil
}

// newUnderstanding returns nil for "none"; the adapter then always falls back.
func newUnderstanding(pc config.ProviderConfig) (provider.Understanding, error) {
	switch pc.Type {
	case "mock":
		return mock.New(), nil
	case "httpjson":
		cl, err := httpjson.New(pc)
		if err != nil {
			return nil, err
		}
		return cl, nil
	case "oai_http":
		cl, err := oaihttp.New(pc)
		if err != nil {
			return nil, err
		}
		return cl, nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}

func newGeneration(pc config.ProviderConfig) (provider.Generation, error) {
	switch pc.Type {
	case "mock":
		return mock.New(), nil
	case "httpjson":
		cl, err := httpjson.New(pc)
		if err != nil {
			return nil, err
		}
		return cl, nil
	case "oai_http":
		cl, err := oaihttp.New(pc)
		if err != nil {
			return nil, err
		}
		return cl, nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}

// Ready pings the stateful backends.
func (c *Clients) Ready(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.Redis != nil {
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if c.Archive != nil {
		sqlDB, err := c.Archive.DB()
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
	}
	return nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Media != nil {
		_ = c.Media.Close()
	}
	if c.Speech != nil {
		_ = c.Speech.Close()
	}
	if c.Vision != nil {
		_ = c.Vision.Close()
	}
	if c.Archive != nil {
		if sqlDB, err := c.Archive.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
