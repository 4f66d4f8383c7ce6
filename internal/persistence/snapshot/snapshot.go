package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"idlecraft.ai/internal/protocol"
)

const (
	Version = 1

	KindState = "state"
	KindRepro = "repro"
)

type Header struct {
	Version int    `json:"version"`
	Kind    string `json:"kind"`
	Tick    int64  `json:"tick"`
}

// StateV1 is the field-keyed, per-subsystem form of a GlobalState.
type StateV1 struct {
	Version int   `json:"version"`
	Tick    int64 `json:"tick"`
	GP      int64 `json:"gp"`

	Skills    map[string]SkillV1 `json:"skills"`
	Mastery   map[string]float64 `json:"mastery,omitempty"`
	Inventory InventoryV1        `json:"inventory"`
	Active    *ActivityV1        `json:"active,omitempty"`
	Purchases map[string]int     `json:"purchases,omitempty"`
	Health    HealthV1           `json:"health"`
	Mining    map[string]RockV1  `json:"mining,omitempty"`
	Farming   []PlotV1           `json:"farming,omitempty"`
	Township  TownshipV1         `json:"township"`
}

type SkillV1 struct {
	XP float64 `json:"xp"`
}

type InventoryV1 struct {
	Slots int            `json:"slots"`
	Items map[string]int `json:"items"`
}

const (
	ActivitySkill  = "skill"
	ActivityCombat = "combat"
)

type ActivityV1 struct {
	Type     string `json:"type"`
	Action   string `json:"action"`
	Progress int    `json:"progress"`
	Total    int    `json:"total"`
	Kills    int    `json:"kills,omitempty"`
}

type HealthV1 struct {
	HP         int `json:"hp"`
	MaxHP      int `json:"max_hp"`
	RegenTicks int `json:"regen_ticks"`
	StunTicks  int `json:"stun_ticks,omitempty"`
	Deaths     int `json:"deaths,omitempty"`
}

type RockV1 struct {
	HP           int `json:"hp"`
	RespawnTicks int `json:"respawn_ticks,omitempty"`
}

type PlotV1 struct {
	Action      string `json:"action"`
	GrowthTicks int    `json:"growth_ticks"`
	TotalTicks  int    `json:"total_ticks"`
}

type TownshipV1 struct {
	Countdown int `json:"countdown"`
}

// ReproBundleV1 captures enough of a failed run to replay it outside the original process.
type ReproBundleV1 struct {
	Header Header `json:"header"`

	Goal          string          `json:"goal"`
	Seed          int64           `json:"seed"`
	Mode          string          `json:"mode"`
	MetaReplan    bool            `json:"meta_replan,omitempty"`
	CatalogDigest string          `json:"catalog_digest,omitempty"`
	Tuning        json.RawMessage `json:"tuning,omitempty"`

	State   StateV1   `json:"state"`
	Failure FailureV1 `json:"failure"`
}

type FailureV1 struct {
	Code        string `json:"code"`
	Reason      string `json:"reason,omitempty"`
	Expanded    int    `json:"expanded,omitempty"`
	Enqueued    int    `json:"enqueued,omitempty"`
	Pruned      int    `json:"pruned,omitempty"`
	BestCredits int64  `json:"best_credits,omitempty"`
	Replans     int    `json:"replans,omitempty"`
}

// WriteState writes a header line followed by the gob-encoded state, zstd-framed.
func WriteState(path string, st StateV1) error {
	return writeFramed(path, Header{Version: Version, Kind: KindState, Tick: st.Tick}, func(w io.Writer) error {
		if err := gob.NewEncoder(w).Encode(&st); err != nil {
			return fmt.Errorf("gob encode: %w", err)
		}
		return nil
	})
}

func ReadState(path string) (StateV1, error) {
	var st StateV1
	err := readFramed(path, KindState, func(r io.Reader) error {
		if err := gob.NewDecoder(r).Decode(&st); err != nil {
			return fmt.Errorf("gob decode: %w", err)
		}
		return nil
	})
	return st, err
}

// WriteBundle writes a repro bundle. The body is JSON so it can be checked against the
// published schema before it is trusted.
func WriteBundle(path string, b ReproBundleV1) error {
	b.Header = Header{Version: Version, Kind: KindRepro, Tick: b.State.Tick}
	body, err := json.Marshal(b)
	if err != nil {
		return err
	}
	if err := protocol.ValidateReproBundle(body); err != nil {
		return err
	}
	return writeFramed(path, b.Header, func(w io.Writer) error {
		_, err := w.Write(body)
		return err
	})
}

func ReadBundle(path string) (ReproBundleV1, error) {
	var b ReproBundleV1
	err := readFramed(path, KindRepro, func(r io.Reader) error {
		body, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return DecodeBundle(body, &b)
	})
	return b, err
}

// DecodeBundle validates raw bundle JSON and decodes it.
func DecodeBundle(body []byte, b *ReproBundleV1) error {
	if err := protocol.ValidateReproBundle(body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, b); err != nil {
		return protocol.Errorf(protocol.ErrBadBundle, err.Error())
	}
	return nil
}

func writeFramed(path string, h Header, body func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(h)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := body(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func readFramed(path, kind string, body func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return fmt.Errorf("unsupported snapshot version %d", h.Version)
	}
	if h.Kind != kind {
		return fmt.Errorf("snapshot kind %q, want %q", h.Kind, kind)
	}
	return body(br)
}
