package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"idlecraft.ai/internal/persistence/indexdb"
)

// openRunIndex picks the index backend from IC_INDEX_BACKEND (default sqlite at dbPath).
// An empty dbPath disables the sqlite backend.
func openRunIndex(dbPath string, logger *log.Logger) (indexdb.Index, error) {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("IC_INDEX_BACKEND")))
	return indexdb.Open(indexdb.BackendConfig{
		Backend:       backend,
		Path:          dbPath,
		IngestURL:     strings.TrimSpace(os.Getenv("IC_INDEX_INGEST_URL")),
		IngestToken:   strings.TrimSpace(os.Getenv("IC_INDEX_TOKEN")),
		Source:        envString("IC_INDEX_SOURCE", hostname()),
		BatchSize:     envInt("IC_INDEX_BATCH_SIZE", 128),
		FlushInterval: time.Duration(envInt("IC_INDEX_FLUSH_MS", 500)) * time.Millisecond,
		Logger:        logger,
	})
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "solve"
	}
	return h
}
