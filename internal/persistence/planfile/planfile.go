// Package planfile stores plans on disk as JSON, zstd-compressed when the path ends in .zst.
package planfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"idlecraft.ai/internal/protocol"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/plan"
)

const compressedSuffix = ".zst"

func Write(path string, p plan.Plan) error {
	raw, err := plan.Encode(p)
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, compressedSuffix) {
		var buf bytes.Buffer
		enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		if _, err := enc.Write(raw); err != nil {
			_ = enc.Close()
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
		raw = buf.Bytes()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadRaw returns the plan JSON stored at path.
func ReadRaw(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if !strings.HasSuffix(path, compressedSuffix) {
		return io.ReadAll(f)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}

// Read loads the plan at path. A plan solved against different registries is rejected.
func Read(cats *catalogs.Catalogs, path string) (plan.Plan, error) {
	raw, err := ReadRaw(path)
	if err != nil {
		return plan.Plan{}, err
	}
	p, err := plan.Decode(cats, raw)
	if err != nil {
		return plan.Plan{}, err
	}
	if p.CatalogDigest != "" && p.CatalogDigest != cats.Digest() {
		return plan.Plan{}, protocol.Errorf(protocol.ErrBadPlan,
			fmt.Sprintf("catalog digest %s does not match loaded catalogs %s", p.CatalogDigest, cats.Digest()))
	}
	return p, nil
}
