package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	PackageName string
	APIKey      string
	Port        string
	GeocodeKey  string
	GeminiKey   string
	GeminiModel string
	LogFile     string
	Debug       bool
}

// Load reads configuration from the environment. PACKAGE_NAME and
// MENTRAOS_API_KEY are required; the process must not start without them.
func Load() (Config, error) {
	cfg := Config{
		PackageName: os.Getenv("PACKAGE_NAME"),
		APIKey:      os.Getenv("MENTRAOS_API_KEY"),
		Port:        getenv("PORT", "3000"),
		GeocodeKey:  os.Getenv("GOOGLE_MAPS_API_KEY"),
		GeminiKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel: getenv("GEMINI_MODEL", "gemini-2.0-flash"),
		LogFile:     os.Getenv("LOG_FILE"),
		Debug:       os.Getenv("DEBUG") == "1",
	}

	var missing []string
	if cfg.PackageName == "" {
		missing = append(missing, "PACKAGE_NAME")
	}
	if cfg.APIKey == "" {
		missing = append(missing, "MENTRAOS_API_KEY")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
