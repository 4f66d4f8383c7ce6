package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/tuning"
)

func TestSQLiteIndex_RecordRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index", "runs.sqlite")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	now := time.Unix(1700000000, 0)
	idx.RecordRun(RunRow{
		RunID: "r1", Goal: "gp:100", Mode: "single", Seed: 42, Outcome: "exact",
		PlannedTicks: 1020, ActualTicks: 1020, Interactions: 2,
		CatalogDigest: "abc", TuningDigest: TuningDigest(tuning.Defaults()),
		StartedAt: now, FinishedAt: now.Add(time.Second),
	})
	idx.RecordPhase(PhaseRow{RunID: "r1", Index: 0, Milestone: "woodcutting:10", Target: "woodcutting:5", Status: "retried", Attempts: 2, PlannedTicks: 600})
	idx.RecordStep(StepRow{RunID: "r1", Index: 3, Kind: "wait", Description: "wait ~600 ticks", PlannedTicks: 600, ActualTicks: 600, Tick: 600, GP: 7})
	idx.RecordFailure(FailureRow{RunID: "r1", Code: "E_DEAD_END", Reason: "stuck", Expanded: 3})
	idx.RecordFailure(FailureRow{RunID: "r1", Code: "E_EXPANSION_BUDGET", Reason: "budget", Expanded: 20000})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		goal    string
		seed    int64
		planned int64
		outcome string
	)
	if err := db.QueryRow(`SELECT goal,seed,planned_ticks,outcome FROM runs WHERE run_id='r1'`).Scan(&goal, &seed, &planned, &outcome); err != nil {
		t.Fatalf("Scan run: %v", err)
	}
	if goal != "gp:100" || seed != 42 || planned != 1020 || outcome != "exact" {
		t.Fatalf("run mismatch: goal=%q seed=%d planned=%d outcome=%q", goal, seed, planned, outcome)
	}

	var status string
	var attempts int
	if err := db.QueryRow(`SELECT status,attempts FROM phases WHERE run_id='r1' AND idx=0`).Scan(&status, &attempts); err != nil {
		t.Fatalf("Scan phase: %v", err)
	}
	if status != "retried" || attempts != 2 {
		t.Fatalf("phase mismatch: %s %d", status, attempts)
	}

	var gp int64
	if err := db.QueryRow(`SELECT gp FROM steps WHERE run_id='r1' AND idx=3`).Scan(&gp); err != nil || gp != 7 {
		t.Fatalf("step: gp=%d err=%v", gp, err)
	}

	var failures int
	if err := db.QueryRow(`SELECT COUNT(*) FROM failures WHERE run_id='r1'`).Scan(&failures); err != nil || failures != 2 {
		t.Fatalf("failures: n=%d err=%v", failures, err)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	if err := idx.UpsertCatalogs("", cats, tune); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var digest string
	if err := db.QueryRow(`SELECT digest FROM catalogs WHERE name='tuning'`).Scan(&digest); err != nil {
		t.Fatalf("Scan tuning: %v", err)
	}
	if digest != TuningDigest(tune) {
		t.Fatalf("tuning digest mismatch")
	}
	if err := db.QueryRow(`SELECT digest FROM catalogs WHERE name='skills'`).Scan(&digest); err != nil || digest != cats.Skills.Digest {
		t.Fatalf("skills row: %q err=%v", digest, err)
	}
}

func TestOpenDisabled(t *testing.T) {
	idx, err := Open(BackendConfig{Backend: "off"})
	if err != nil || idx != nil {
		t.Fatalf("expected disabled index, got %v %v", idx, err)
	}
	if _, err := Open(BackendConfig{Backend: "mongo"}); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
}
