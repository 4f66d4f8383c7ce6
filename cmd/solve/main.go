package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"idlecraft.ai/internal/persistence/archive"
	persistlog "idlecraft.ai/internal/persistence/log"
	"idlecraft.ai/internal/persistence/r2s3"
	"idlecraft.ai/internal/persistence/snapshot"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
	"idlecraft.ai/internal/transport/observer"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		goalSpec   = flag.String("goal", "", "goal: gp:N | skill:ID:L | multi:ID=L,ID=L | all[:L]")
		seed       = flag.Int64("seed", 1, "rng seed")
		replan     = flag.Bool("replan", false, "solve in bounded segments, executing each before replanning (with -meta: per phase)")
		metaMode   = flag.Bool("meta", false, "decompose the goal into milestones and solve them as phases")
		diag       = flag.Bool("diag", false, "collect and print solver diagnostics")
		verbose    = flag.Bool("verbose", false, "log every plan step")
		outPath    = flag.String("out", "", "write the plan to this file (.json or .json.zst)")
		execute    = flag.Bool("exec", false, "execute the plan after solving and report deviations")
		statePath  = flag.String("state", "", "start from this state snapshot, or the latest milestone of a checkpointed run dir (default: a fresh state)")
		checkpoint = flag.String("checkpoint_dir", "", "archive the state after every meta phase under <dir>/<run id>")
		reproDir   = flag.String("repro_dir", "", "write a repro bundle here when solving fails")
		traceDir   = flag.String("trace_dir", "", "write execution traces (jsonl.zst) here")
		indexPath  = flag.String("index", "", "sqlite run index path (empty disables; IC_INDEX_BACKEND overrides)")
		watchAddr  = flag.String("watch_addr", "", "serve the websocket progress feed on this address")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[solve] ", log.LstdFlags|log.Lmicroseconds)

	if strings.TrimSpace(*goalSpec) == "" {
		fmt.Fprintln(os.Stderr, "missing -goal")
		return 2
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	g, err := goal.Parse(cats, *goalSpec)
	if err != nil {
		logger.Fatalf("parse goal: %v", err)
	}

	st := state.Empty(tune)
	if p := strings.TrimSpace(*statePath); p != "" {
		if fi, err := os.Stat(p); err == nil && fi.IsDir() {
			latest, ok := archive.LatestMilestone(p)
			if !ok {
				logger.Fatalf("no archived milestones in %s", p)
			}
			logger.Printf("resuming from %s", latest)
			p = latest
		}
		snap, err := snapshot.ReadState(p)
		if err != nil {
			logger.Fatalf("read state: %v", err)
		}
		st, err = state.ImportSnapshot(cats, snap)
		if err != nil {
			logger.Fatalf("import state: %v", err)
		}
	}

	// Optional: read-model index backend (does not affect plans).
	idx, err := openRunIndex(strings.TrimSpace(*indexPath), logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	mirror, err := openArtifactMirror(logger)
	if err != nil {
		logger.Fatalf("artifact mirror: %v", err)
	}
	defer mirror.Close()

	var trace *persistlog.TraceLogger
	td := strings.TrimSpace(*traceDir)
	if td != "" {
		trace = persistlog.NewTraceLogger(td)
	}

	var obs *observer.Server
	if a := strings.TrimSpace(*watchAddr); a != "" {
		obs = observer.NewServer(logger)
		shutdown, err := serveObserver(a, obs, logger)
		if err != nil {
			logger.Fatalf("observer listen: %v", err)
		}
		defer shutdown()
	}

	mode := modeSolve
	switch {
	case *metaMode:
		mode = modeMeta
	case *replan:
		mode = modeReplan
	}

	r := &runner{
		cats:       cats,
		tune:       tune,
		logger:     logger,
		idx:        idx,
		trace:      trace,
		obs:        obs,
		runID:      newRunID(*seed),
		mode:       mode,
		seed:       *seed,
		diag:       *diag,
		verbose:    *verbose,
		execute:    *execute,
		metaReplan: *replan,
		outPath:    strings.TrimSpace(*outPath),
		reproDir:   strings.TrimSpace(*reproDir),
		mirror:     mirror,
		ckptDir:    strings.TrimSpace(*checkpoint),
		startedAt:  time.Now().UTC(),
	}
	sum := r.run(st, g)

	if trace != nil {
		if err := trace.Close(); err != nil {
			logger.Printf("close trace: %v", err)
		}
		if err := mirror.EnqueueDir(r.runID, r2s3.KindTrace, td); err != nil {
			logger.Printf("mirror traces: %v", err)
		}
	}

	b, _ := json.MarshalIndent(sum, "", "  ")
	fmt.Println(string(b))
	if sum.Code != "" {
		return 1
	}
	return 0
}

func serveObserver(addr string, obs *observer.Server, logger *log.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/watch", obs.WSHandler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("observer: %v", err)
		}
	}()
	logger.Printf("observer feed on ws://%s/v1/watch", ln.Addr())
	return func() {
		obs.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func newRunID(seed int64) string {
	return fmt.Sprintf("%s-s%d", time.Now().UTC().Format("20060102T150405.000"), seed)
}
