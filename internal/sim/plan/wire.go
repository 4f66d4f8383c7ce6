package plan

import (
	"encoding/json"
	"fmt"

	"idlecraft.ai/internal/protocol"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/engine"
	"idlecraft.ai/internal/sim/goal"
)

const FileVersion = 1

// FileV1 is the on-disk plan format (schemas/plan.schema.json).
type FileV1 struct {
	Version          int       `json:"version"`
	Goal             string    `json:"goal"`
	Seed             int64     `json:"seed"`
	CatalogDigest    string    `json:"catalog_digest,omitempty"`
	TotalTicks       int64     `json:"total_ticks"`
	InteractionCount int       `json:"interaction_count"`
	ExpectedDeaths   float64   `json:"expected_deaths"`
	Segments         []Segment `json:"segments,omitempty"`
	Steps            []StepV1  `json:"steps"`
}

type StepV1 struct {
	Kind         string         `json:"kind"`
	Interaction  *InteractionV1 `json:"interaction,omitempty"`
	Condition    *ConditionV1   `json:"condition,omitempty"`
	MaxTicks     int64          `json:"max_ticks,omitempty"`
	PlannedTicks int64          `json:"planned_ticks"`
	Action       string         `json:"action,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	Merged       int            `json:"merged,omitempty"`
}

type InteractionV1 struct {
	Type     string `json:"type"`
	Action   string `json:"action,omitempty"`
	Purchase string `json:"purchase,omitempty"`
}

type ConditionV1 struct {
	Type    string `json:"type"`
	Skill   string `json:"skill,omitempty"`
	Level   int    `json:"level,omitempty"`
	GP      int64  `json:"gp,omitempty"`
	Credits int64  `json:"credits,omitempty"`
	Item    string `json:"item,omitempty"`
	Count   int    `json:"count,omitempty"`
	Slots   int    `json:"slots,omitempty"`
}

const (
	stepInteraction = "interaction"
	stepWait        = "wait"
	stepMacro       = "macro"
)

// Encode renders p in the plan file format.
func Encode(p Plan) ([]byte, error) {
	f := FileV1{
		Version:          FileVersion,
		Goal:             p.Goal.String(),
		Seed:             p.Seed,
		CatalogDigest:    p.CatalogDigest,
		TotalTicks:       p.TotalTicks,
		InteractionCount: p.InteractionCount,
		ExpectedDeaths:   p.ExpectedDeaths,
		Segments:         p.Segments,
		Steps:            make([]StepV1, 0, len(p.Steps)),
	}
	for _, s := range p.Steps {
		switch s := s.(type) {
		case InteractionStep:
			in, err := encodeInteraction(s.Interaction)
			if err != nil {
				return nil, err
			}
			f.Steps = append(f.Steps, StepV1{Kind: stepInteraction, Interaction: in})
		case WaitStep:
			f.Steps = append(f.Steps, StepV1{Kind: stepWait, Condition: encodeCondition(s.Until), MaxTicks: s.MaxTicks,
				PlannedTicks: s.PlannedTicks, Action: s.Action, Reason: s.Reason})
		case MacroStep:
			f.Steps = append(f.Steps, StepV1{Kind: stepMacro, Condition: encodeCondition(s.Until), MaxTicks: s.MaxTicks,
				PlannedTicks: s.PlannedTicks, Action: s.Action, Reason: s.Reason, Merged: s.Merged})
		default:
			return nil, fmt.Errorf("plan: cannot encode step %T", s)
		}
	}
	return json.MarshalIndent(f, "", "  ")
}

// Decode validates raw against the plan schema and rebuilds the plan against cats.
func Decode(cats *catalogs.Catalogs, raw []byte) (Plan, error) {
	if err := protocol.ValidatePlan(raw); err != nil {
		return Plan{}, err
	}
	var f FileV1
	if err := json.Unmarshal(raw, &f); err != nil {
		return Plan{}, badPlan("%v", err)
	}
	g, err := goal.Parse(cats, f.Goal)
	if err != nil {
		return Plan{}, err
	}
	p := Plan{Goal: g, Seed: f.Seed, CatalogDigest: f.CatalogDigest, ExpectedDeaths: f.ExpectedDeaths, Segments: f.Segments}
	for i, sv := range f.Steps {
		switch sv.Kind {
		case stepInteraction:
			in, err := decodeInteraction(cats, sv.Interaction)
			if err != nil {
				return Plan{}, badPlan("step %d: %v", i, err)
			}
			p.Steps = append(p.Steps, InteractionStep{Interaction: in})
		case stepWait, stepMacro:
			c, err := decodeCondition(cats, g, sv.Condition)
			if err != nil {
				return Plan{}, badPlan("step %d: %v", i, err)
			}
			if sv.MaxTicks <= 0 {
				return Plan{}, badPlan("step %d: max_ticks must be > 0", i)
			}
			if sv.Kind == stepWait {
				p.Steps = append(p.Steps, WaitStep{Until: c, MaxTicks: sv.MaxTicks, PlannedTicks: sv.PlannedTicks, Action: sv.Action, Reason: sv.Reason})
			} else {
				p.Steps = append(p.Steps, MacroStep{Until: c, MaxTicks: sv.MaxTicks, PlannedTicks: sv.PlannedTicks, Action: sv.Action, Reason: sv.Reason, Merged: sv.Merged})
			}
		default:
			return Plan{}, badPlan("step %d: unknown kind %q", i, sv.Kind)
		}
	}
	p.recount()
	if p.TotalTicks != f.TotalTicks || p.InteractionCount != f.InteractionCount {
		return Plan{}, badPlan("totals do not match steps: ticks %d/%d interactions %d/%d",
			f.TotalTicks, p.TotalTicks, f.InteractionCount, p.InteractionCount)
	}
	return p, nil
}

func encodeInteraction(in engine.Interaction) (*InteractionV1, error) {
	switch in := in.(type) {
	case engine.SwitchActivity:
		return &InteractionV1{Type: "switch", Action: in.ActionID}, nil
	case engine.BuyUpgrade:
		return &InteractionV1{Type: "buy", Purchase: in.PurchaseID}, nil
	case engine.SellAll:
		return &InteractionV1{Type: "sell_all"}, nil
	case engine.StopActivity:
		return &InteractionV1{Type: "stop"}, nil
	}
	return nil, fmt.Errorf("plan: cannot encode interaction %T", in)
}

func decodeInteraction(cats *catalogs.Catalogs, v *InteractionV1) (engine.Interaction, error) {
	if v == nil {
		return nil, fmt.Errorf("missing interaction")
	}
	switch v.Type {
	case "switch":
		if _, ok := cats.Action(v.Action); !ok {
			return nil, fmt.Errorf("unknown action %q", v.Action)
		}
		return engine.SwitchActivity{ActionID: v.Action}, nil
	case "buy":
		if _, ok := cats.Purchase(v.Purchase); !ok {
			return nil, fmt.Errorf("unknown purchase %q", v.Purchase)
		}
		return engine.BuyUpgrade{PurchaseID: v.Purchase}, nil
	case "sell_all":
		return engine.SellAll{}, nil
	case "stop":
		return engine.StopActivity{}, nil
	}
	return nil, fmt.Errorf("unknown interaction type %q", v.Type)
}

func encodeCondition(c Condition) *ConditionV1 {
	switch c := c.(type) {
	case GoalReached:
		return &ConditionV1{Type: "goal"}
	case SkillLevel:
		return &ConditionV1{Type: "skill_level", Skill: string(c.Skill), Level: c.Level}
	case GPAtLeast:
		return &ConditionV1{Type: "gp", GP: c.GP}
	case CreditsAtLeast:
		return &ConditionV1{Type: "credits", Credits: c.Credits}
	case ItemCount:
		return &ConditionV1{Type: "item_count", Item: c.Item, Count: c.Count}
	case InputsDepleted:
		return &ConditionV1{Type: "inputs_depleted"}
	case SlotsUsed:
		return &ConditionV1{Type: "slots_used", Slots: c.Slots}
	case HorizonCap:
		return &ConditionV1{Type: "ticks"}
	}
	return &ConditionV1{Type: "ticks"}
}

func decodeCondition(cats *catalogs.Catalogs, g goal.Goal, v *ConditionV1) (Condition, error) {
	if v == nil {
		return nil, fmt.Errorf("missing condition")
	}
	switch v.Type {
	case "goal":
		return GoalReached{Goal: g}, nil
	case "skill_level":
		if !cats.HasSkill(catalogs.Skill(v.Skill)) {
			return nil, fmt.Errorf("unknown skill %q", v.Skill)
		}
		return SkillLevel{Skill: catalogs.Skill(v.Skill), Level: v.Level}, nil
	case "gp":
		return GPAtLeast{GP: v.GP}, nil
	case "credits":
		return CreditsAtLeast{Credits: v.Credits}, nil
	case "item_count":
		if _, ok := cats.Item(v.Item); !ok {
			return nil, fmt.Errorf("unknown item %q", v.Item)
		}
		return ItemCount{Item: v.Item, Count: v.Count}, nil
	case "inputs_depleted":
		return InputsDepleted{}, nil
	case "slots_used":
		return SlotsUsed{Slots: v.Slots}, nil
	case "ticks":
		return HorizonCap{}, nil
	}
	return nil, fmt.Errorf("unknown condition type %q", v.Type)
}

func badPlan(format string, args ...any) error {
	return protocol.Errorf(protocol.ErrBadPlan, fmt.Sprintf(format, args...))
}
