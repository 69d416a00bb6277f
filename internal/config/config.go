package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr            string
	DatabasePath    string
	CatalogPath     string
	IntegritySecret string
	AdminToken      string
	RankRefresh     time.Duration
	RankRetro       bool
	SeedBots        bool
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadAPIFromEnv() APIConfig {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("MERCADO_API_ADDR", ":8080")
	}

	return APIConfig{
		Addr:            addr,
		DatabasePath:    envDefault("MERCADO_DB_PATH", "mercado.db"),
		CatalogPath:     strings.TrimSpace(os.Getenv("MERCADO_CATALOG_PATH")),
		IntegritySecret: strings.TrimSpace(os.Getenv("MERCADO_INTEGRITY_SECRET")),
		AdminToken:      strings.TrimSpace(os.Getenv("MERCADO_ADMIN_TOKEN")),
		RankRefresh:     envRankRefresh(),
		RankRetro:       envBoolDefault("MERCADO_RETRO_SKIN", true),
		SeedBots:        envBoolDefault("MERCADO_SEED_BOTS", true),
	}
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("MRC_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

// envRankRefresh honors an explicit interval, otherwise picks the skin's
// default cadence: the retro skin refreshes every minute, the classic one
// every five.
func envRankRefresh() time.Duration {
	if v := strings.TrimSpace(os.Getenv("MERCADO_RANK_REFRESH")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	if envBoolDefault("MERCADO_RETRO_SKIN", true) {
		return time.Minute
	}
	return 5 * time.Minute
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
