package indexdb

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// BackendConfig selects an index backend: "sqlite" (Path), "ingest" (Ingest*), or
// "none"/"off".
type BackendConfig struct {
	Backend string
	Path    string

	IngestURL     string
	IngestToken   string
	Source        string
	BatchSize     int
	FlushInterval time.Duration
	Logger        *log.Logger
}

// Open returns a nil Index for the disabled backends.
func Open(cfg BackendConfig) (Index, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		if cfg.Path == "" {
			return nil, nil
		}
		return OpenSQLite(cfg.Path)
	case "ingest":
		return OpenIngest(IngestConfig{
			Endpoint:      cfg.IngestURL,
			Token:         cfg.IngestToken,
			Source:        cfg.Source,
			BatchSize:     cfg.BatchSize,
			FlushInterval: cfg.FlushInterval,
			Logger:        cfg.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", cfg.Backend)
	}
}
