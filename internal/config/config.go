package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Marketplace client modes.
const (
	ModeAPI  = "api"
	ModeHTML = "html"
)

type Config struct {
	ProjectID           string
	Port                string
	MarketplaceMode     string
	MarketplaceBaseURL  string
	MarketplaceToken    string
	AffiliateCampaignID string
	AllowedDomains      []string
	DealWebhookURL      string

	SearchDelay   time.Duration
	SearchTimeout time.Duration
	SearchLimit   int

	// ExecutionStaleCutoff is the per-execution eviction window: an active
	// deal missing from a run's found set is only deactivated once it is
	// older than this. SweepMaxAge is the broader safety-net window applied
	// by the standalone sweeper every SweepInterval.
	ExecutionStaleCutoff time.Duration
	SweepMaxAge          time.Duration
	SweepInterval        time.Duration
}

func Load() (*Config, error) {
	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT environment variable is required but not set")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	mode := os.Getenv("MARKETPLACE_MODE")
	if mode == "" {
		mode = ModeAPI
	}
	if mode != ModeAPI && mode != ModeHTML {
		return nil, fmt.Errorf("invalid MARKETPLACE_MODE %q: must be %q or %q", mode, ModeAPI, ModeHTML)
	}

	baseURL := os.Getenv("MARKETPLACE_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("MARKETPLACE_BASE_URL environment variable is required but not set")
	}

	token := os.Getenv("MARKETPLACE_TOKEN")
	if token == "" && mode == ModeAPI {
		slog.Warn("MARKETPLACE_TOKEN not set, search requests will be unauthenticated")
	}

	campaignID := os.Getenv("AFFILIATE_CAMPAIGN_ID")
	if campaignID == "" {
		slog.Warn("AFFILIATE_CAMPAIGN_ID not set, item URLs will not be decorated")
	}

	cfg := &Config{
		ProjectID:           projectID,
		Port:                port,
		MarketplaceMode:     mode,
		MarketplaceBaseURL:  baseURL,
		MarketplaceToken:    token,
		AffiliateCampaignID: campaignID,
		DealWebhookURL:      os.Getenv("DEAL_WEBHOOK_URL"),
	}

	var err error
	if cfg.SearchDelay, err = durationEnv("SEARCH_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.SearchTimeout, err = durationEnv("SEARCH_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.ExecutionStaleCutoff, err = durationEnv("EXECUTION_STALE_CUTOFF", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SweepMaxAge, err = durationEnv("SWEEP_MAX_AGE", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = durationEnv("SWEEP_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}

	cfg.SearchLimit = 50
	if v := os.Getenv("SEARCH_LIMIT"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid SEARCH_LIMIT %q", v)
		}
		cfg.SearchLimit = parsed
	}

	if domains := os.Getenv("MARKETPLACE_ALLOWED_DOMAINS"); domains != "" {
		for _, d := range strings.Split(domains, ",") {
			if d = strings.TrimSpace(d); d != "" {
				cfg.AllowedDomains = append(cfg.AllowedDomains, d)
			}
		}
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
