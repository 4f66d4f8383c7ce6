package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "idlecraft.ai/internal/persistence/log"
	"idlecraft.ai/internal/persistence/planfile"
	"idlecraft.ai/internal/persistence/snapshot"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/executor"
	"idlecraft.ai/internal/sim/rng"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

func main() {
	var (
		planPath   = flag.String("plan", "", "plan file to execute (.json or .json.zst)")
		bundlePath = flag.String("bundle", "", "repro bundle to re-solve (.repro.zst)")
		statePath  = flag.String("state", "", "start state snapshot for -plan (default: a fresh state)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		traceDir   = flag.String("trace_dir", "", "trace dir written by solve -trace_dir; steps are compared against it (optional)")
		strict     = flag.Bool("strict", false, "exit non-zero unless the replay is exact")
	)
	flag.Parse()

	if (*planPath == "") == (*bundlePath == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -plan or -bundle is required")
		os.Exit(2)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}

	if *bundlePath != "" {
		if err := replayBundle(cats, *bundlePath); err != nil {
			fmt.Fprintln(os.Stderr, "replay bundle:", err)
			os.Exit(1)
		}
		return
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

	p, err := planfile.Read(cats, *planPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read plan:", err)
		os.Exit(1)
	}
	st := state.Empty(tune)
	if *statePath != "" {
		snap, err := snapshot.ReadState(*statePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read state:", err)
			os.Exit(1)
		}
		if st, err = state.ImportSnapshot(cats, snap); err != nil {
			fmt.Fprintln(os.Stderr, "import state:", err)
			os.Exit(1)
		}
	}

	var recorded []persistlog.StepRecord
	if *traceDir != "" {
		recorded, err = readSteps(filepath.Join(*traceDir, "steps"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "read trace:", err)
			os.Exit(1)
		}
	}

	world := rng.New(p.Seed)
	var mismatches int
	res := executor.ExecutePlan(cats, tune, st, p, &world, func(rep executor.StepReport) {
		if rep.Index >= len(recorded) {
			return
		}
		want := recorded[rep.Index]
		if want.ActualTicks != rep.ActualTicks || want.Tick != rep.State.Tick() || want.GP != rep.State.GP() {
			mismatches++
			fmt.Fprintf(os.Stderr, "step %d: trace ticks=%d tick=%d gp=%d, replay ticks=%d tick=%d gp=%d\n",
				rep.Index, want.ActualTicks, want.Tick, want.GP, rep.ActualTicks, rep.State.Tick(), rep.State.GP())
		}
	})

	fmt.Printf("replay %s: goal=%s seed=%d steps=%d planned=%d actual=%d deaths=%d outcome=%s\n",
		filepath.Base(*planPath), p.Goal, p.Seed, len(p.Steps), res.PlannedTicks, res.ActualTicks, res.TotalDeaths, res.Outcome)
	for _, b := range res.UnexpectedBoundaries {
		fmt.Printf("  unexpected %s at step %d tick %d %s\n", b.Boundary, b.Step, b.Tick, b.Detail)
	}
	if !p.Goal.IsSatisfied(cats, res.FinalState) {
		fmt.Printf("  goal not satisfied: %s\n", res.FinalState)
	}
	if mismatches > 0 {
		fmt.Fprintf(os.Stderr, "replay diverged from trace at %d steps\n", mismatches)
		os.Exit(1)
	}
	if *strict && res.Outcome != executor.OutcomeExact {
		os.Exit(1)
	}
}

// readSteps loads recorded step traces; a run with several RunIDs keeps the first.
func readSteps(dir string) ([]persistlog.StepRecord, error) {
	var out []persistlog.StepRecord
	runID := ""
	err := persistlog.ReadJSONL(dir, func(line []byte) error {
		var s persistlog.StepRecord
		if err := json.Unmarshal(line, &s); err != nil {
			return err
		}
		if runID == "" {
			runID = s.RunID
		}
		if s.RunID == runID {
			out = append(out, s)
		}
		return nil
	})
	return out, err
}
