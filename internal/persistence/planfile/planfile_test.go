package planfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"idlecraft.ai/internal/protocol"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/engine"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/plan"
)

func testPlan(digest string) plan.Plan {
	g := goal.ReachGP{Target: 100}
	p := plan.New(g, 3, []plan.Step{
		plan.InteractionStep{Interaction: engine.SwitchActivity{ActionID: "pickpocket_man"}},
		plan.WaitStep{Until: plan.CreditsAtLeast{Credits: 100}, MaxTicks: 3000, PlannedTicks: 1400, Action: "pickpocket_man", Reason: "goal_reached"},
	}, 0)
	p.CatalogDigest = digest
	return p
}

func TestWriteReadPlainAndCompressed(t *testing.T) {
	cats := catalogs.Fixture()
	dir := t.TempDir()
	for _, name := range []string{"plan.json", "plan.json.zst"} {
		path := filepath.Join(dir, "out", name)
		want := testPlan(cats.Digest())
		if err := Write(path, want); err != nil {
			t.Fatalf("%s: write: %v", name, err)
		}
		got, err := Read(cats, path)
		if err != nil {
			t.Fatalf("%s: read: %v", name, err)
		}
		if got.TotalTicks != 1400 || got.InteractionCount != 1 || len(got.Steps) != 2 {
			t.Fatalf("%s: got %+v", name, got)
		}
		a, _ := plan.Encode(want)
		b, _ := plan.Encode(got)
		if !bytes.Equal(a, b) {
			t.Fatalf("%s: re-encoded plan differs", name)
		}
	}

	raw, err := os.ReadFile(filepath.Join(dir, "out", "plan.json.zst"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if bytes.HasPrefix(raw, []byte("{")) {
		t.Fatalf(".zst file was not compressed")
	}
}

func TestReadRejectsDigestMismatch(t *testing.T) {
	cats := catalogs.Fixture()
	path := filepath.Join(t.TempDir(), "plan.json")
	if err := Write(path, testPlan("deadbeef")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Read(cats, path)
	var pe *protocol.Error
	if !errors.As(err, &pe) || pe.Code != protocol.ErrBadPlan {
		t.Fatalf("expected %s, got %v", protocol.ErrBadPlan, err)
	}
}

func TestReadRejectsInvalidFile(t *testing.T) {
	cats := catalogs.Fixture()
	path := filepath.Join(t.TempDir(), "plan.json")
	if err := os.WriteFile(path, []byte(`{"version":1}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Read(cats, path); err == nil {
		t.Fatalf("expected schema error")
	}
}
