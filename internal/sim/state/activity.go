package state

import "fmt"

// Activity is the running foreground action. The variants are SkillActivity and
// CombatActivity; a nil Activity means idle.
type Activity interface {
	ActionID() string
	Progress() int
	Total() int
	withProgress(progress, total int) Activity
}

type SkillActivity struct {
	Action        string
	ProgressTicks int
	TotalTicks    int
}

type CombatActivity struct {
	Action        string
	ProgressTicks int
	TotalTicks    int
	Kills         int
}

func (a SkillActivity) ActionID() string { return a.Action }
func (a SkillActivity) Progress() int    { return a.ProgressTicks }
func (a SkillActivity) Total() int       { return a.TotalTicks }

func (a SkillActivity) withProgress(p, t int) Activity {
	a.ProgressTicks, a.TotalTicks = p, t
	return a
}

func (a CombatActivity) ActionID() string { return a.Action }
func (a CombatActivity) Progress() int    { return a.ProgressTicks }
func (a CombatActivity) Total() int       { return a.TotalTicks }

func (a CombatActivity) withProgress(p, t int) Activity {
	a.ProgressTicks, a.TotalTicks = p, t
	return a
}

// WithProgress returns a copy of a with new progress/total ticks.
func WithProgress(a Activity, progress, total int) Activity {
	if a == nil {
		return nil
	}
	return a.withProgress(progress, total)
}

func describeActivity(a Activity) string {
	switch a := a.(type) {
	case nil:
		return "idle"
	case SkillActivity:
		return fmt.Sprintf("%s %d/%d", a.Action, a.ProgressTicks, a.TotalTicks)
	case CombatActivity:
		return fmt.Sprintf("%s %d/%d kills=%d", a.Action, a.ProgressTicks, a.TotalTicks, a.Kills)
	}
	return "unknown"
}
