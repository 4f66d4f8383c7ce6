package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"idlecraft.ai/internal/persistence/snapshot"
)

const metaFile = "meta.json"

type MilestoneMeta struct {
	RunID     string `json:"run_id"`
	Phase     int    `json:"phase"`
	Milestone string `json:"milestone"`
	Target    string `json:"target"`
	Status    string `json:"status"`
	Tick      int64  `json:"tick"`
	Seed      int64  `json:"seed"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
}

// ArchiveMilestone writes the state reached by a meta-plan phase into
// `runDir/milestones/phase_<NNN>/` together with a meta.json, so a later run can resume
// from it. It returns the snapshot path.
func ArchiveMilestone(runDir string, m MilestoneMeta, st snapshot.StateV1) (string, error) {
	dir := filepath.Join(runDir, "milestones", fmt.Sprintf("phase_%03d", m.Phase))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, "state.snap.zst")
	if err := snapshot.WriteState(dst, st); err != nil {
		return "", err
	}

	m.Tick = st.Tick
	m.Snapshot = filepath.Base(dst)
	if m.CreatedAt == "" {
		m.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), b, 0o644); err != nil {
		return "", err
	}
	return dst, nil
}

// ListMilestones returns the archived milestones under runDir in phase order.
func ListMilestones(runDir string) ([]MilestoneMeta, error) {
	paths, err := filepath.Glob(filepath.Join(runDir, "milestones", "phase_*", metaFile))
	if err != nil {
		return nil, err
	}
	out := make([]MilestoneMeta, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		var m MilestoneMeta
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phase < out[j].Phase })
	return out, nil
}

// LatestMilestone returns the snapshot path of the last archived milestone.
func LatestMilestone(runDir string) (string, bool) {
	ms, err := ListMilestones(runDir)
	if err != nil || len(ms) == 0 {
		return "", false
	}
	last := ms[len(ms)-1]
	return filepath.Join(runDir, "milestones", fmt.Sprintf("phase_%03d", last.Phase), last.Snapshot), true
}
