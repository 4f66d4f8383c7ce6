// Package meta splits long skill goals into milestones, orders them by item-flow
// dependencies, and solves them one phase at a time.
package meta

import (
	"fmt"
	"sort"

	"idlecraft.ai/internal/protocol"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/state"
)

// Milestone is a single-skill level target.
type Milestone struct {
	Skill catalogs.Skill `json:"skill"`
	Level int            `json:"level"`
}

func (m Milestone) ID() string { return fmt.Sprintf("%s:%d", m.Skill, m.Level) }

func (m Milestone) Goal() goal.ReachSkillLevel {
	return goal.ReachSkillLevel{SkillTarget: goal.SkillTarget{Skill: m.Skill, Level: m.Level}}
}

// Graph holds milestones in dependency order with their prerequisite edges.
type Graph struct {
	order []Milestone
	deps  map[string][]string
	// Broken counts cross-skill edges dropped to resolve dependency cycles.
	Broken int
}

func (g *Graph) Milestones() []Milestone { return append([]Milestone(nil), g.order...) }

// Deps returns the ids of the milestones m depends on, sorted.
func (g *Graph) Deps(m Milestone) []string { return append([]string(nil), g.deps[m.ID()]...) }

func (g *Graph) Len() int { return len(g.order) }

// Extractor builds milestone graphs. CheckpointStep spaces the intermediate levels.
type Extractor struct {
	Cats           *catalogs.Catalogs
	CheckpointStep int
}

// Extract builds the graph for a skill-based meta-goal starting from st. Levels already
// reached produce no milestones.
func (e Extractor) Extract(st state.GlobalState, g goal.Goal) (*Graph, error) {
	targets, err := skillTargets(e.Cats, g)
	if err != nil {
		return nil, err
	}
	step := e.CheckpointStep
	if step <= 0 {
		step = state.MaxLevel
	}

	bySkill := map[catalogs.Skill][]Milestone{}
	var all []Milestone
	for _, t := range targets {
		cur := st.Level(t.Skill)
		for lvl := (cur/step + 1) * step; lvl < t.Level; lvl += step {
			bySkill[t.Skill] = append(bySkill[t.Skill], Milestone{Skill: t.Skill, Level: lvl})
		}
		if cur < t.Level {
			bySkill[t.Skill] = append(bySkill[t.Skill], Milestone{Skill: t.Skill, Level: t.Level})
		}
		all = append(all, bySkill[t.Skill]...)
	}

	deps := map[string][]string{}
	for _, ms := range bySkill {
		for i := 1; i < len(ms); i++ {
			deps[ms[i].ID()] = append(deps[ms[i].ID()], ms[i-1].ID())
		}
	}
	for _, m := range all {
		for src, need := range e.feeders(m) {
			if dep, ok := firstAtLeast(bySkill[src], need); ok {
				deps[m.ID()] = append(deps[m.ID()], dep.ID())
			}
		}
	}
	for k := range deps {
		sort.Strings(deps[k])
		deps[k] = dedupe(deps[k])
	}

	gr := &Graph{deps: deps}
	gr.order, gr.Broken = e.sort(all, deps)
	return gr, nil
}

// feeders returns, per other skill, the lowest level at which that skill produces an input
// consumed by an action of m.Skill usable below m.Level.
func (e Extractor) feeders(m Milestone) map[catalogs.Skill]int {
	out := map[catalogs.Skill]int{}
	for _, a := range e.Cats.ActionsForSkill(m.Skill) {
		if a.UnlockLevel >= m.Level {
			continue
		}
		for _, in := range a.Inputs {
			for _, pid := range e.Cats.Producers(in.Item) {
				p, _ := e.Cats.Action(pid)
				if p.Skill == m.Skill {
					continue
				}
				if cur, ok := out[p.Skill]; !ok || p.UnlockLevel < cur {
					out[p.Skill] = p.UnlockLevel
				}
			}
		}
	}
	return out
}

// sort is Kahn's algorithm, lowest level first with skill order breaking ties. A cycle is
// broken by releasing the lowest remaining milestone whose own-skill predecessor is done.
func (e Extractor) sort(all []Milestone, deps map[string][]string) ([]Milestone, int) {
	less := func(a, b Milestone) bool {
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		return e.Cats.Skills.Index[a.Skill] < e.Cats.Skills.Index[b.Skill]
	}
	done := map[string]bool{}
	remaining := append([]Milestone(nil), all...)
	sort.SliceStable(remaining, func(i, j int) bool { return less(remaining[i], remaining[j]) })

	var order []Milestone
	broken := 0
	for len(remaining) > 0 {
		pick := -1
		for i, m := range remaining {
			if ready(deps[m.ID()], done, nil) {
				pick = i
				break
			}
		}
		if pick < 0 {
			for i, m := range remaining {
				if ready(deps[m.ID()], done, func(id string) bool { return sameSkill(id, m) }) {
					pick = i
					broken++
					break
				}
			}
		}
		if pick < 0 {
			pick = 0
			broken++
		}
		m := remaining[pick]
		order = append(order, m)
		done[m.ID()] = true
		remaining = append(remaining[:pick], remaining[pick+1:]...)
	}
	return order, broken
}

func ready(deps []string, done map[string]bool, only func(string) bool) bool {
	for _, d := range deps {
		if only != nil && !only(d) {
			continue
		}
		if !done[d] {
			return false
		}
	}
	return true
}

func sameSkill(id string, m Milestone) bool {
	return len(id) > len(m.Skill) && id[:len(m.Skill)] == string(m.Skill) && id[len(m.Skill)] == ':'
}

func firstAtLeast(ms []Milestone, level int) (Milestone, bool) {
	for _, m := range ms {
		if m.Level >= level {
			return m, true
		}
	}
	return Milestone{}, false
}

func dedupe(s []string) []string {
	out := s[:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}

func skillTargets(cats *catalogs.Catalogs, g goal.Goal) ([]goal.SkillTarget, error) {
	switch g := g.(type) {
	case goal.ReachSkillLevel:
		return []goal.SkillTarget{g.SkillTarget}, nil
	case goal.MultiSkill:
		return g.Targets, nil
	case goal.AllSkills:
		return g.Expand(cats).Targets, nil
	case goal.ReachGP:
		return nil, protocol.Errorf(protocol.ErrBadGoal, "meta planning needs skill targets, got "+g.String())
	}
	return nil, protocol.Errorf(protocol.ErrBadGoal, fmt.Sprintf("unsupported goal %T", g))
}
