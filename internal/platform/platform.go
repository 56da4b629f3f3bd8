// Package platform selects the remote binding named by configuration.
package platform

import (
	"fmt"

	"github.com/tOgg1/threadline/internal/config"
	"github.com/tOgg1/threadline/internal/models"
	"github.com/tOgg1/threadline/internal/platform/httpx"
	"github.com/tOgg1/threadline/internal/platform/mastodon"
	"github.com/tOgg1/threadline/internal/platform/twitter"
	"github.com/tOgg1/threadline/internal/thread"
)

// New returns the binding for cfg.Kind.
func New(cfg config.PlatformConfig, token string) (thread.Platform, error) {
	httpCfg := httpx.Config{
		BaseURL:           cfg.BaseURL,
		Token:             token,
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	}

	switch cfg.Kind {
	case models.PlatformTwitter:
		return twitter.New(httpCfg), nil
	case models.PlatformMastodon:
		return mastodon.New(httpCfg)
	default:
		return nil, fmt.Errorf("unsupported platform %q", cfg.Kind)
	}
}
