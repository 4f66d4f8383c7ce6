package r2s3

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Artifact kinds; they become the second path element of the object key.
const (
	KindPlan  = "plan"
	KindRepro = "repro"
	KindTrace = "trace"
)

// Artifact is one local file produced by a run.
type Artifact struct {
	RunID string
	Kind  string
	Path  string
}

// Key is <prefix>/<run id>/<kind>/<file name>.
func (a Artifact) Key(prefix string) (string, error) {
	if a.RunID == "" || a.Kind == "" || a.Path == "" {
		return "", fmt.Errorf("artifact needs run id, kind and path")
	}
	name := filepath.Base(a.Path)
	for _, part := range []string{a.RunID, a.Kind, name} {
		if part == "." || part == ".." || strings.ContainsAny(part, "/\\") {
			return "", fmt.Errorf("invalid object key part %q", part)
		}
	}
	prefix = strings.Trim(path.Clean("/"+strings.ReplaceAll(prefix, "\\", "/")), "/")
	return path.Join(prefix, a.RunID, a.Kind, name), nil
}

type Stats struct {
	QueueDepth         int
	QueueCapacity      int
	EnqueuedTotal      uint64
	DroppedTotal       uint64
	UploadSuccessTotal uint64
	UploadFailTotal    uint64
	LastSuccessUnix    int64
	LastErrorUnix      int64
}

// Mirror uploads artifacts in the background. Close waits for queued uploads.
type Mirror struct {
	client *Client
	prefix string
	logger *log.Logger

	jobs        chan Artifact
	enqueueWait time.Duration
	backoff     time.Duration
	wg          sync.WaitGroup

	enqueuedTotal      atomic.Uint64
	droppedTotal       atomic.Uint64
	uploadSuccessTotal atomic.Uint64
	uploadFailTotal    atomic.Uint64
	lastSuccessUnix    atomic.Int64
	lastErrorUnix      atomic.Int64
}

func NewMirror(client *Client, prefix string, workers, queueCapacity int, enqueueWait time.Duration, logger *log.Logger) *Mirror {
	if workers <= 0 {
		workers = 1
	}
	if queueCapacity <= 0 {
		queueCapacity = 256
	}
	if enqueueWait <= 0 {
		enqueueWait = 250 * time.Millisecond
	}
	m := &Mirror{
		client:      client,
		prefix:      strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"),
		logger:      logger,
		jobs:        make(chan Artifact, queueCapacity),
		enqueueWait: enqueueWait,
		backoff:     200 * time.Millisecond,
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for a := range m.jobs {
				m.uploadOne(a)
			}
		}()
	}
	return m
}

// Enqueue queues a for upload. A nil Mirror ignores it.
func (m *Mirror) Enqueue(a Artifact) {
	if m == nil || m.client == nil {
		return
	}
	m.enqueuedTotal.Add(1)

	select {
	case m.jobs <- a:
		return
	default:
	}

	timer := time.NewTimer(m.enqueueWait)
	defer timer.Stop()
	select {
	case m.jobs <- a:
	case <-timer.C:
		dropped := m.droppedTotal.Add(1)
		m.printf("mirror drop run=%s local=%s reason=queue_saturated dropped_total=%d", a.RunID, a.Path, dropped)
	}
}

// EnqueueDir queues every regular file under dir as kind.
func (m *Mirror) EnqueueDir(runID, kind, dir string) error {
	if m == nil {
		return nil
	}
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			m.Enqueue(Artifact{RunID: runID, Kind: kind, Path: p})
		}
		return nil
	})
}

func (m *Mirror) Close() {
	if m == nil {
		return
	}
	close(m.jobs)
	m.wg.Wait()
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:         len(m.jobs),
		QueueCapacity:      cap(m.jobs),
		EnqueuedTotal:      m.enqueuedTotal.Load(),
		DroppedTotal:       m.droppedTotal.Load(),
		UploadSuccessTotal: m.uploadSuccessTotal.Load(),
		UploadFailTotal:    m.uploadFailTotal.Load(),
		LastSuccessUnix:    m.lastSuccessUnix.Load(),
		LastErrorUnix:      m.lastErrorUnix.Load(),
	}
}

func (m *Mirror) uploadOne(a Artifact) {
	key, err := a.Key(m.prefix)
	if err != nil {
		m.printf("mirror skip local=%s err=%v", a.Path, err)
		return
	}

	if err := m.uploadWithRetry(key, a.Path); err != nil {
		m.uploadFailTotal.Add(1)
		m.lastErrorUnix.Store(time.Now().UTC().Unix())
		m.printf("mirror upload failed key=%s local=%s err=%v", key, a.Path, err)
		return
	}
	m.uploadSuccessTotal.Add(1)
	m.lastSuccessUnix.Store(time.Now().UTC().Unix())
	m.printf("mirror uploaded key=%s", key)
}

func (m *Mirror) uploadWithRetry(key, localPath string) error {
	const maxAttempts = 4
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err := m.client.Upload(ctx, key, localPath)
		cancel()
		if err == nil {
			return nil
		}
		if os.IsNotExist(err) {
			return err
		}
		lastErr = err
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt*attempt) * m.backoff)
		}
	}
	return lastErr
}

func (m *Mirror) printf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
