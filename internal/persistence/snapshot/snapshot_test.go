package snapshot

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func sampleState() StateV1 {
	return StateV1{
		Version:   Version,
		Tick:      1234,
		GP:        77,
		Skills:    map[string]SkillV1{"woodcutting": {XP: 1200}, "fishing": {XP: 15}},
		Mastery:   map[string]float64{"normal_tree": 300},
		Inventory: InventoryV1{Slots: 12, Items: map[string]int{"normal_logs": 14, "bird_nest": 1}},
		Active:    &ActivityV1{Type: ActivitySkill, Action: "normal_tree", Progress: 10, Total: 60},
		Purchases: map[string]int{"iron_axe": 1},
		Health:    HealthV1{HP: 90, MaxHP: 100, RegenTicks: 40},
		Mining:    map[string]RockV1{"copper_rock": {HP: 3}},
		Farming:   []PlotV1{{Action: "plant_potato", GrowthTicks: 100, TotalTicks: 600}},
		Township:  TownshipV1{Countdown: 500},
	}
}

func TestState_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.zst")
	want := sampleState()
	if err := WriteState(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadState(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got=%+v\nwant=%+v", got, want)
	}
}

func TestBundle_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repro", "bundle.zst")
	want := ReproBundleV1{
		Goal:          "skill:runecrafting:5",
		Seed:          42,
		Mode:          "single",
		CatalogDigest: "abc",
		State:         sampleState(),
		Failure:       FailureV1{Code: "E_DEAD_END", Reason: "frontier exhausted", Expanded: 3, Enqueued: 5},
	}
	if err := WriteBundle(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadBundle(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Header.Kind != KindRepro || got.Header.Tick != want.State.Tick {
		t.Fatalf("header: %+v", got.Header)
	}
	want.Header = got.Header
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got=%+v\nwant=%+v", got, want)
	}
}

func TestBundle_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.zst")
	b := ReproBundleV1{Goal: "gp:1", Mode: "nonsense", State: sampleState(), Failure: FailureV1{Code: "E_DEAD_END"}}
	if err := WriteBundle(path, b); err == nil {
		t.Fatalf("expected invalid mode to be rejected")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("invalid bundle should not be written")
	}
}

func TestReadState_WrongKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.zst")
	b := ReproBundleV1{Goal: "gp:1", Mode: "single", State: sampleState(), Failure: FailureV1{Code: "E_DEAD_END"}}
	if err := WriteBundle(path, b); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadState(path); err == nil {
		t.Fatalf("expected kind mismatch error")
	}
}
