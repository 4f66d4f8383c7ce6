package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TicksPerSecond     int     `yaml:"ticks_per_second" json:"ticks_per_second"`
	BaseInventorySlots int     `yaml:"base_inventory_slots" json:"base_inventory_slots"`
	MaxHP              int     `yaml:"max_hp" json:"max_hp"`
	HPRegenEveryTicks  int     `yaml:"hp_regen_every_ticks" json:"hp_regen_every_ticks"`
	HPRegenAmount      int     `yaml:"hp_regen_amount" json:"hp_regen_amount"`
	TownshipCycleTicks int     `yaml:"township_cycle_ticks" json:"township_cycle_ticks"`
	FarmingPlots       int     `yaml:"farming_plots" json:"farming_plots"`
	MasteryXPFraction  float64 `yaml:"mastery_xp_fraction" json:"mastery_xp_fraction"`

	Solver Solver `yaml:"solver" json:"solver"`
	Meta   Meta   `yaml:"meta" json:"meta"`
}

type Solver struct {
	MaxExpansions int `yaml:"max_expansions" json:"max_expansions"`
	MaxEnqueued   int `yaml:"max_enqueued" json:"max_enqueued"`
	// Upper bound on a single wait edge; longer waits are split so the search can reconsider.
	MaxWaitTicks       int64 `yaml:"max_wait_ticks" json:"max_wait_ticks"`
	MaxReplans         int   `yaml:"max_replans" json:"max_replans"`
	ReplanHorizonTicks int64 `yaml:"replan_horizon_ticks" json:"replan_horizon_ticks"`

	SellThreshold         float64 `yaml:"sell_threshold" json:"sell_threshold"`
	GPBucket              int64   `yaml:"gp_bucket" json:"gp_bucket"`
	ItemBucket            int     `yaml:"item_bucket" json:"item_bucket"`
	MaxCandidatesPerSkill int     `yaml:"max_candidates_per_skill" json:"max_candidates_per_skill"`

	InteractionOverheadTicks int64 `yaml:"interaction_overhead_ticks" json:"interaction_overhead_ticks"`
}

type Meta struct {
	MaxPhases       int   `yaml:"max_phases" json:"max_phases"`
	PhaseTickBudget int64 `yaml:"phase_tick_budget" json:"phase_tick_budget"`
	CheckpointStep  int   `yaml:"checkpoint_step" json:"checkpoint_step"`
	RetryOnFailure  bool  `yaml:"retry_on_failure" json:"retry_on_failure"`
}

func Defaults() Tuning {
	return Tuning{
		TicksPerSecond:     20,
		BaseInventorySlots: 12,
		MaxHP:              100,
		HPRegenEveryTicks:  200,
		HPRegenAmount:      5,
		TownshipCycleTicks: 1200,
		FarmingPlots:       3,
		MasteryXPFraction:  0.25,
		Solver: Solver{
			MaxExpansions:         20000,
			MaxEnqueued:           200000,
			MaxWaitTicks:          72000,
			MaxReplans:            25,
			ReplanHorizonTicks:    36000,
			SellThreshold:         0.8,
			GPBucket:              25,
			ItemBucket:            10,
			MaxCandidatesPerSkill: 2,
		},
		Meta: Meta{
			MaxPhases:       64,
			PhaseTickBudget: 5_000_000,
			CheckpointStep:  10,
			RetryOnFailure:  true,
		},
	}
}

// Load reads a tuning file on top of Defaults, so partial files are valid.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TicksPerSecond <= 0:
		return fmt.Errorf("ticks_per_second must be > 0")
	case t.BaseInventorySlots <= 0:
		return fmt.Errorf("base_inventory_slots must be > 0")
	case t.MaxHP <= 0:
		return fmt.Errorf("max_hp must be > 0")
	case t.TownshipCycleTicks <= 0:
		return fmt.Errorf("township_cycle_ticks must be > 0")
	case t.FarmingPlots < 0:
		return fmt.Errorf("farming_plots must be >= 0")
	case t.MasteryXPFraction < 0:
		return fmt.Errorf("mastery_xp_fraction must be >= 0")
	case t.Solver.MaxExpansions <= 0 || t.Solver.MaxEnqueued <= 0:
		return fmt.Errorf("solver budgets must be > 0")
	case t.Solver.MaxWaitTicks <= 0 || t.Solver.ReplanHorizonTicks <= 0:
		return fmt.Errorf("solver tick caps must be > 0")
	case t.Solver.MaxReplans <= 0:
		return fmt.Errorf("solver.max_replans must be > 0")
	case t.Solver.SellThreshold <= 0 || t.Solver.SellThreshold > 1:
		return fmt.Errorf("solver.sell_threshold must be in (0,1]")
	case t.Solver.GPBucket <= 0 || t.Solver.ItemBucket <= 0:
		return fmt.Errorf("solver buckets must be > 0")
	case t.Solver.MaxCandidatesPerSkill <= 0:
		return fmt.Errorf("solver.max_candidates_per_skill must be > 0")
	case t.Meta.MaxPhases <= 0 || t.Meta.PhaseTickBudget <= 0:
		return fmt.Errorf("meta budgets must be > 0")
	case t.Meta.CheckpointStep <= 0:
		return fmt.Errorf("meta.checkpoint_step must be > 0")
	}
	return nil
}
