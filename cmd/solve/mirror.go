package main

import (
	"log"
	"os"
	"strings"
	"time"

	"idlecraft.ai/internal/persistence/r2s3"
)

// openArtifactMirror returns nil unless IC_MIRROR_ENDPOINT is set.
func openArtifactMirror(logger *log.Logger) (*r2s3.Mirror, error) {
	endpoint := strings.TrimSpace(os.Getenv("IC_MIRROR_ENDPOINT"))
	if endpoint == "" {
		return nil, nil
	}
	client, err := r2s3.New(
		endpoint,
		os.Getenv("IC_MIRROR_BUCKET"),
		os.Getenv("IC_MIRROR_ACCESS_KEY_ID"),
		os.Getenv("IC_MIRROR_SECRET_ACCESS_KEY"),
	)
	if err != nil {
		return nil, err
	}
	return r2s3.NewMirror(
		client,
		envString("IC_MIRROR_PREFIX", "idlecraft"),
		envInt("IC_MIRROR_WORKERS", 2),
		envInt("IC_MIRROR_QUEUE", 256),
		time.Duration(envInt("IC_MIRROR_ENQUEUE_WAIT_MS", 250))*time.Millisecond,
		logger,
	), nil
}
