// Package goal defines what a solve is trying to reach. Variants: ReachGP, ReachSkillLevel,
// MultiSkill, AllSkills.
package goal

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"idlecraft.ai/internal/protocol"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/rates"
	"idlecraft.ai/internal/sim/state"
)

type Goal interface {
	IsSatisfied(cats *catalogs.Catalogs, st state.GlobalState) bool
	// Remaining is the distance still to cover: GP credits or XP, summed over targets.
	Remaining(cats *catalogs.Catalogs, st state.GlobalState) float64
	// LowerBoundTicks never overestimates the ticks needed from st. +Inf means unreachable.
	LowerBoundTicks(cats *catalogs.Catalogs, st state.GlobalState, b rates.Bounds) float64
	// Skills lists the skills the goal is measured on, empty for GP goals.
	Skills(cats *catalogs.Catalogs) []catalogs.Skill
	String() string
	goal()
}

type ReachGP struct {
	Target int64
}

type SkillTarget struct {
	Skill catalogs.Skill
	Level int
}

type ReachSkillLevel struct {
	SkillTarget
}

type MultiSkill struct {
	Targets []SkillTarget
}

type AllSkills struct {
	Level int
}

func (ReachGP) goal()         {}
func (ReachSkillLevel) goal() {}
func (MultiSkill) goal()      {}
func (AllSkills) goal()       {}

func (g ReachGP) IsSatisfied(_ *catalogs.Catalogs, st state.GlobalState) bool {
	return st.GP() >= g.Target
}

// Remaining counts inventory at sell value, since one SellAll converts it.
func (g ReachGP) Remaining(cats *catalogs.Catalogs, st state.GlobalState) float64 {
	return math.Max(0, float64(g.Target-st.Credits(cats)))
}

func (g ReachGP) LowerBoundTicks(cats *catalogs.Catalogs, st state.GlobalState, b rates.Bounds) float64 {
	rem := g.Remaining(cats, st)
	if rem == 0 {
		return 0
	}
	if b.CreditsPerTick <= 0 {
		return math.Inf(1)
	}
	return rem / b.CreditsPerTick
}

func (ReachGP) Skills(*catalogs.Catalogs) []catalogs.Skill { return nil }

func (g ReachGP) String() string { return fmt.Sprintf("gp:%d", g.Target) }

func (t SkillTarget) xpNeeded(st state.GlobalState) float64 {
	return math.Max(0, state.XPForLevel(t.Level)-st.XP(t.Skill))
}

func (t SkillTarget) lowerBound(st state.GlobalState, b rates.Bounds) float64 {
	need := t.xpNeeded(st)
	if need == 0 {
		return 0
	}
	r := b.XPPerTick[t.Skill]
	if r <= 0 {
		return math.Inf(1)
	}
	return need / r
}

func (g ReachSkillLevel) IsSatisfied(_ *catalogs.Catalogs, st state.GlobalState) bool {
	return st.Level(g.Skill) >= g.Level
}

func (g ReachSkillLevel) Remaining(_ *catalogs.Catalogs, st state.GlobalState) float64 {
	return g.xpNeeded(st)
}

func (g ReachSkillLevel) LowerBoundTicks(_ *catalogs.Catalogs, st state.GlobalState, b rates.Bounds) float64 {
	return g.lowerBound(st, b)
}

func (g ReachSkillLevel) Skills(*catalogs.Catalogs) []catalogs.Skill {
	return []catalogs.Skill{g.Skill}
}

func (g ReachSkillLevel) String() string { return fmt.Sprintf("skill:%s:%d", g.Skill, g.Level) }

func (g MultiSkill) IsSatisfied(_ *catalogs.Catalogs, st state.GlobalState) bool {
	for _, t := range g.Targets {
		if st.Level(t.Skill) < t.Level {
			return false
		}
	}
	return true
}

func (g MultiSkill) Remaining(_ *catalogs.Catalogs, st state.GlobalState) float64 {
	var sum float64
	for _, t := range g.Targets {
		sum += t.xpNeeded(st)
	}
	return sum
}

// LowerBoundTicks sums per-skill bounds: every action trains exactly one skill, so the
// targets cannot progress in parallel.
func (g MultiSkill) LowerBoundTicks(_ *catalogs.Catalogs, st state.GlobalState, b rates.Bounds) float64 {
	var sum float64
	for _, t := range g.Targets {
		sum += t.lowerBound(st, b)
	}
	return sum
}

func (g MultiSkill) Skills(*catalogs.Catalogs) []catalogs.Skill {
	out := make([]catalogs.Skill, 0, len(g.Targets))
	for _, t := range g.Targets {
		out = append(out, t.Skill)
	}
	return out
}

func (g MultiSkill) String() string {
	parts := make([]string, 0, len(g.Targets))
	for _, t := range g.Targets {
		parts = append(parts, fmt.Sprintf("%s=%d", t.Skill, t.Level))
	}
	return "multi:" + strings.Join(parts, ",")
}

// Expand turns AllSkills into the equivalent MultiSkill for a catalog.
func (g AllSkills) Expand(cats *catalogs.Catalogs) MultiSkill {
	m := MultiSkill{Targets: make([]SkillTarget, 0, len(cats.Skills.Order))}
	for _, s := range cats.Skills.Order {
		m.Targets = append(m.Targets, SkillTarget{Skill: s, Level: g.Level})
	}
	return m
}

func (g AllSkills) IsSatisfied(cats *catalogs.Catalogs, st state.GlobalState) bool {
	return g.Expand(cats).IsSatisfied(cats, st)
}

func (g AllSkills) Remaining(cats *catalogs.Catalogs, st state.GlobalState) float64 {
	return g.Expand(cats).Remaining(cats, st)
}

func (g AllSkills) LowerBoundTicks(cats *catalogs.Catalogs, st state.GlobalState, b rates.Bounds) float64 {
	return g.Expand(cats).LowerBoundTicks(cats, st, b)
}

func (g AllSkills) Skills(cats *catalogs.Catalogs) []catalogs.Skill {
	return append([]catalogs.Skill(nil), cats.Skills.Order...)
}

func (g AllSkills) String() string { return fmt.Sprintf("all:%d", g.Level) }

// Parse reads the CLI goal forms:
//
//	gp:<amount>
//	skill:<skill>:<level>
//	multi:<skill>=<level>,<skill>=<level>
//	all[:<level>]
func Parse(cats *catalogs.Catalogs, s string) (Goal, error) {
	kind, rest, _ := strings.Cut(strings.TrimSpace(s), ":")
	switch kind {
	case "gp":
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || n <= 0 {
			return nil, badGoal("gp target must be a positive integer, got %q", rest)
		}
		return ReachGP{Target: n}, nil
	case "skill":
		name, lvl, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, badGoal("want skill:<skill>:<level>, got %q", s)
		}
		t, err := parseTarget(cats, name, lvl)
		if err != nil {
			return nil, err
		}
		return ReachSkillLevel{SkillTarget: t}, nil
	case "multi":
		seen := map[catalogs.Skill]bool{}
		var m MultiSkill
		for _, part := range strings.Split(rest, ",") {
			name, lvl, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok {
				return nil, badGoal("want <skill>=<level>, got %q", part)
			}
			t, err := parseTarget(cats, name, lvl)
			if err != nil {
				return nil, err
			}
			if seen[t.Skill] {
				return nil, badGoal("skill %s listed twice", t.Skill)
			}
			seen[t.Skill] = true
			m.Targets = append(m.Targets, t)
		}
		if len(m.Targets) == 0 {
			return nil, badGoal("multi goal without targets")
		}
		sort.Slice(m.Targets, func(i, j int) bool { return m.Targets[i].Skill < m.Targets[j].Skill })
		return m, nil
	case "all":
		level := state.MaxLevel
		if rest != "" {
			n, err := parseLevel(rest)
			if err != nil {
				return nil, err
			}
			level = n
		}
		return AllSkills{Level: level}, nil
	}
	return nil, badGoal("unknown goal kind %q", kind)
}

func parseTarget(cats *catalogs.Catalogs, name, lvl string) (SkillTarget, error) {
	sk := catalogs.Skill(strings.TrimSpace(name))
	if !cats.HasSkill(sk) {
		return SkillTarget{}, badGoal("unknown skill %q", name)
	}
	n, err := parseLevel(lvl)
	if err != nil {
		return SkillTarget{}, err
	}
	return SkillTarget{Skill: sk, Level: n}, nil
}

func parseLevel(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > state.MaxLevel {
		return 0, badGoal("level must be in [1,%d], got %q", state.MaxLevel, s)
	}
	return n, nil
}

func badGoal(format string, args ...any) error {
	return protocol.Errorf(protocol.ErrBadGoal, fmt.Sprintf(format, args...))
}
