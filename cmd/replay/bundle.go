package main

import (
	"encoding/json"
	"fmt"

	"idlecraft.ai/internal/persistence/snapshot"
	"idlecraft.ai/internal/protocol"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/meta"
	"idlecraft.ai/internal/sim/solver"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

// replayBundle re-solves a repro bundle and checks that it fails the same way.
func replayBundle(cats *catalogs.Catalogs, path string) error {
	b, err := snapshot.ReadBundle(path)
	if err != nil {
		return err
	}
	if b.CatalogDigest != "" && b.CatalogDigest != cats.Digest() {
		return fmt.Errorf("bundle was recorded against catalogs %s, loaded %s", b.CatalogDigest, cats.Digest())
	}
	tune := tuning.Defaults()
	if len(b.Tuning) > 0 {
		if err := json.Unmarshal(b.Tuning, &tune); err != nil {
			return protocol.Errorf(protocol.ErrBadBundle, "tuning: "+err.Error())
		}
	}
	st, err := state.ImportSnapshot(cats, b.State)
	if err != nil {
		return err
	}
	g, err := goal.Parse(cats, b.Goal)
	if err != nil {
		return err
	}

	code, reason := resolve(cats, tune, st, g, b.Mode, b.MetaReplan, b.Seed)
	fmt.Printf("bundle goal=%s mode=%s seed=%d tick=%d recorded=%s replayed=%s\n",
		b.Goal, b.Mode, b.Seed, b.Header.Tick, b.Failure.Code, orNone(code))
	if reason != "" {
		fmt.Printf("  reason: %s\n", reason)
	}
	if code != b.Failure.Code {
		return fmt.Errorf("failure did not reproduce: recorded %s, replayed %s", b.Failure.Code, orNone(code))
	}
	return nil
}

func resolve(cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState, g goal.Goal, mode string, metaReplan bool, seed int64) (string, string) {
	switch mode {
	case "meta":
		pl := &meta.Planner{Cats: cats, Tune: tune, Seed: seed, Replan: metaReplan}
		mp, err := pl.Solve(st, g)
		if err != nil {
			return protocol.ErrBadGoal, err.Error()
		}
		return mp.Code, mp.Reason
	case "replan":
		res := solver.SolveWithReplanning(cats, tune, st, g, solver.ReplanOptions{Options: solver.Options{Seed: seed}})
		switch res := res.(type) {
		case solver.ReplanFailure:
			return res.Code, res.Reason
		case solver.Failed:
			return res.Code, res.Reason
		}
		return "", ""
	default:
		if f, ok := solver.Solve(cats, tune, st, g, solver.Options{Seed: seed}).(solver.Failed); ok {
			return f.Code, f.Reason
		}
		return "", ""
	}
}

func orNone(code string) string {
	if code == "" {
		return "none"
	}
	return code
}
