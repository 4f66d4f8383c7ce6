package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqPhase
	reqStep
	reqFailure
)

type req struct {
	kind reqKind

	run     RunRow
	phase   PhaseRow
	step    StepRow
	failure FailureRow
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Step rows arrive in bursts of thousands for long plans.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			goal TEXT NOT NULL,
			mode TEXT NOT NULL,
			seed INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			code TEXT,
			planned_ticks INTEGER NOT NULL,
			actual_ticks INTEGER NOT NULL,
			interactions INTEGER NOT NULL,
			deaths INTEGER NOT NULL,
			expected_deaths REAL NOT NULL,
			catalog_digest TEXT NOT NULL,
			tuning_digest TEXT NOT NULL,
			plan_path TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_goal ON runs(goal, started_at);`,
		`CREATE TABLE IF NOT EXISTS phases (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			milestone TEXT NOT NULL,
			target TEXT NOT NULL,
			status TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			planned_ticks INTEGER NOT NULL,
			actual_ticks INTEGER NOT NULL,
			code TEXT,
			PRIMARY KEY (run_id, idx)
		);`,
		`CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			kind TEXT NOT NULL,
			description TEXT NOT NULL,
			planned_ticks INTEGER NOT NULL,
			actual_ticks INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			gp INTEGER NOT NULL,
			PRIMARY KEY (run_id, idx)
		);`,
		`CREATE TABLE IF NOT EXISTS failures (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			code TEXT NOT NULL,
			reason TEXT NOT NULL,
			expanded INTEGER NOT NULL,
			enqueued INTEGER NOT NULL,
			pruned INTEGER NOT NULL,
			best_credits INTEGER NOT NULL,
			bundle_path TEXT,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_failures_code ON failures(code);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) send(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		// Drop if the indexer falls behind.
	}
}

func (s *SQLiteIndex) RecordRun(r RunRow)         { s.send(req{kind: reqRun, run: r}) }
func (s *SQLiteIndex) RecordPhase(r PhaseRow)     { s.send(req{kind: reqPhase, phase: r}) }
func (s *SQLiteIndex) RecordStep(r StepRow)       { s.send(req{kind: reqStep, step: r}) }
func (s *SQLiteIndex) RecordFailure(r FailureRow) { s.send(req{kind: reqFailure, failure: r}) }

func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range catalogRows(configDir, cats, tune) {
		if _, err := stmt.Exec(r.name, r.digest, string(r.data), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,goal,mode,seed,outcome,code,planned_ticks,actual_ticks,interactions,deaths,expected_deaths,catalog_digest,tuning_digest,plan_path,started_at,finished_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertPhase, _ := s.db.Prepare(`INSERT OR REPLACE INTO phases(run_id,idx,milestone,target,status,attempts,planned_ticks,actual_ticks,code) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertStep, _ := s.db.Prepare(`INSERT OR REPLACE INTO steps(run_id,idx,kind,description,planned_ticks,actual_ticks,tick,gp) VALUES(?,?,?,?,?,?,?,?)`)
	insertFailure, _ := s.db.Prepare(`INSERT OR REPLACE INTO failures(run_id,seq,code,reason,expanded,enqueued,pruned,best_credits,bundle_path) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRun, insertPhase, insertStep, insertFailure} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		failureSeq = map[string]int{}
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			ru := r.run
			exec(insertRun, ru.RunID, ru.Goal, ru.Mode, ru.Seed, ru.Outcome, ru.Code,
				ru.PlannedTicks, ru.ActualTicks, ru.Interactions, ru.Deaths, ru.ExpectedDeaths,
				ru.CatalogDigest, ru.TuningDigest, ru.PlanPath,
				ru.StartedAt.UTC().Format(time.RFC3339Nano), ru.FinishedAt.UTC().Format(time.RFC3339Nano))
		case reqPhase:
			p := r.phase
			exec(insertPhase, p.RunID, p.Index, p.Milestone, p.Target, p.Status, p.Attempts, p.PlannedTicks, p.ActualTicks, p.Code)
		case reqStep:
			st := r.step
			exec(insertStep, st.RunID, st.Index, st.Kind, st.Description, st.PlannedTicks, st.ActualTicks, st.Tick, st.GP)
		case reqFailure:
			f := r.failure
			seq := failureSeq[f.RunID]
			failureSeq[f.RunID]++
			exec(insertFailure, f.RunID, seq, f.Code, f.Reason, f.Expanded, f.Enqueued, f.Pruned, f.BestCredits, f.BundlePath)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
