package plan

import (
	"fmt"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/state"
)

// Condition ends a wait. Variants: GoalReached, SkillLevel, GPAtLeast, CreditsAtLeast,
// ItemCount, InputsDepleted, SlotsUsed, HorizonCap.
type Condition interface {
	Holds(cats *catalogs.Catalogs, st state.GlobalState) bool
	// Monotone conditions cannot turn false again while time passes without interactions.
	Monotone() bool
	String() string
	condition()
}

type GoalReached struct{ Goal goal.Goal }
type SkillLevel struct {
	Skill catalogs.Skill
	Level int
}
type GPAtLeast struct{ GP int64 }
type CreditsAtLeast struct{ Credits int64 }
type ItemCount struct {
	Item  string
	Count int
}
type InputsDepleted struct{}
type SlotsUsed struct{ Slots int }

// HorizonCap never holds; the wait ends at its tick cap.
type HorizonCap struct{}

func (GoalReached) condition()    {}
func (SkillLevel) condition()     {}
func (GPAtLeast) condition()      {}
func (CreditsAtLeast) condition() {}
func (ItemCount) condition()      {}
func (InputsDepleted) condition() {}
func (SlotsUsed) condition()      {}
func (HorizonCap) condition()     {}

func (c GoalReached) Holds(cats *catalogs.Catalogs, st state.GlobalState) bool {
	return c.Goal.IsSatisfied(cats, st)
}
func (c SkillLevel) Holds(_ *catalogs.Catalogs, st state.GlobalState) bool {
	return st.Level(c.Skill) >= c.Level
}
func (c GPAtLeast) Holds(_ *catalogs.Catalogs, st state.GlobalState) bool { return st.GP() >= c.GP }
func (c CreditsAtLeast) Holds(cats *catalogs.Catalogs, st state.GlobalState) bool {
	return st.Credits(cats) >= c.Credits
}
func (c ItemCount) Holds(_ *catalogs.Catalogs, st state.GlobalState) bool {
	return st.Count(c.Item) >= c.Count
}
func (InputsDepleted) Holds(_ *catalogs.Catalogs, st state.GlobalState) bool {
	return st.Active() == nil
}
func (c SlotsUsed) Holds(_ *catalogs.Catalogs, st state.GlobalState) bool {
	return st.SlotsUsed() >= c.Slots
}
func (HorizonCap) Holds(*catalogs.Catalogs, state.GlobalState) bool { return false }

// XP and GP only grow while waiting, and an activity never restarts on its own.
func (GoalReached) Monotone() bool    { return true }
func (SkillLevel) Monotone() bool     { return true }
func (GPAtLeast) Monotone() bool      { return true }
func (CreditsAtLeast) Monotone() bool { return false }
func (ItemCount) Monotone() bool      { return false }
func (InputsDepleted) Monotone() bool { return true }
func (SlotsUsed) Monotone() bool      { return false }
func (HorizonCap) Monotone() bool     { return true }

func (c GoalReached) String() string    { return "goal " + c.Goal.String() }
func (c SkillLevel) String() string     { return fmt.Sprintf("%s level %d", c.Skill, c.Level) }
func (c GPAtLeast) String() string      { return fmt.Sprintf("%d gp", c.GP) }
func (c CreditsAtLeast) String() string { return fmt.Sprintf("%d credits", c.Credits) }
func (c ItemCount) String() string      { return fmt.Sprintf("%d %s", c.Count, c.Item) }
func (InputsDepleted) String() string   { return "inputs depleted" }
func (c SlotsUsed) String() string      { return fmt.Sprintf("%d slots used", c.Slots) }
func (HorizonCap) String() string       { return "horizon" }
