package indexdb

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/tuning"
)

// Index records solver runs. Writes are asynchronous and best effort; plan files and traces
// remain the source of truth.
type Index interface {
	RecordRun(r RunRow)
	RecordPhase(r PhaseRow)
	RecordStep(r StepRow)
	RecordFailure(r FailureRow)
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	Close() error
}

type RunRow struct {
	RunID          string    `json:"run_id"`
	Goal           string    `json:"goal"`
	Mode           string    `json:"mode"`
	Seed           int64     `json:"seed"`
	Outcome        string    `json:"outcome"`
	Code           string    `json:"code,omitempty"`
	PlannedTicks   int64     `json:"planned_ticks"`
	ActualTicks    int64     `json:"actual_ticks"`
	Interactions   int       `json:"interactions"`
	Deaths         int       `json:"deaths"`
	ExpectedDeaths float64   `json:"expected_deaths"`
	CatalogDigest  string    `json:"catalog_digest"`
	TuningDigest   string    `json:"tuning_digest"`
	PlanPath       string    `json:"plan_path,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

type PhaseRow struct {
	RunID        string `json:"run_id"`
	Index        int    `json:"index"`
	Milestone    string `json:"milestone"`
	Target       string `json:"target"`
	Status       string `json:"status"`
	Attempts     int    `json:"attempts"`
	PlannedTicks int64  `json:"planned_ticks"`
	ActualTicks  int64  `json:"actual_ticks"`
	Code         string `json:"code,omitempty"`
}

type StepRow struct {
	RunID        string `json:"run_id"`
	Index        int    `json:"index"`
	Kind         string `json:"kind"`
	Description  string `json:"description"`
	PlannedTicks int64  `json:"planned_ticks"`
	ActualTicks  int64  `json:"actual_ticks"`
	Tick         int64  `json:"tick"`
	GP           int64  `json:"gp"`
}

type FailureRow struct {
	RunID       string `json:"run_id"`
	Code        string `json:"code"`
	Reason      string `json:"reason"`
	Expanded    int    `json:"expanded"`
	Enqueued    int    `json:"enqueued"`
	Pruned      int    `json:"pruned"`
	BestCredits int64  `json:"best_credits"`
	BundlePath  string `json:"bundle_path,omitempty"`
}

// TuningDigest is the sha256 of the canonical JSON of tune.
func TuningDigest(tune tuning.Tuning) string {
	b, _ := json.Marshal(tune)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type catalogRow struct {
	name   string
	digest string
	data   []byte
}

// catalogRows returns the raw registry files next to their digests, plus the tuning values
// actually applied.
func catalogRows(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) []catalogRow {
	var rows []catalogRow
	add := func(name, file, digest string, fallback any) {
		var b []byte
		if configDir != "" {
			b, _ = os.ReadFile(filepath.Join(configDir, file))
		}
		if len(b) == 0 && fallback != nil {
			b, _ = json.Marshal(fallback)
		}
		if len(b) > 0 && digest != "" {
			rows = append(rows, catalogRow{name: name, digest: digest, data: b})
		}
	}
	add("skills", "skills.json", cats.Skills.Digest, cats.Skills.Order)
	add("items", "items.json", cats.Items.Digest, nil)
	add("actions", "actions.json", cats.Actions.Digest, nil)
	add("shop", "shop.json", cats.Shop.Digest, nil)

	b, _ := json.Marshal(tune)
	rows = append(rows, catalogRow{name: "tuning", digest: TuningDigest(tune), data: b})
	return rows
}
