package engine

import (
	"fmt"

	"idlecraft.ai/internal/protocol"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/state"
)

// Interaction is a discrete player decision. Variants: SwitchActivity, BuyUpgrade,
// SellAll, StopActivity.
type Interaction interface {
	String() string
	interaction()
}

type SwitchActivity struct{ ActionID string }
type BuyUpgrade struct{ PurchaseID string }
type SellAll struct{}
type StopActivity struct{}

func (SwitchActivity) interaction() {}
func (BuyUpgrade) interaction()     {}
func (SellAll) interaction()        {}
func (StopActivity) interaction()   {}

func (i SwitchActivity) String() string { return "switch:" + i.ActionID }
func (i BuyUpgrade) String() string     { return "buy:" + i.PurchaseID }
func (SellAll) String() string          { return "sell_all" }
func (StopActivity) String() string     { return "stop" }

// CanApply reports whether Apply would succeed, without building a new state.
func CanApply(cats *catalogs.Catalogs, st state.GlobalState, in Interaction) error {
	switch in := in.(type) {
	case SwitchActivity:
		a, ok := cats.Action(in.ActionID)
		if !ok {
			return protocol.Errorf(protocol.ErrInteractionStale, fmt.Sprintf("unknown action %q", in.ActionID))
		}
		if lvl := st.Level(a.Skill); lvl < a.UnlockLevel {
			return protocol.Errorf(protocol.ErrInteractionStale, fmt.Sprintf("%s requires %s %d (have %d)", a.ID, a.Skill, a.UnlockLevel, lvl))
		}
		return nil
	case BuyUpgrade:
		p, ok := cats.Purchase(in.PurchaseID)
		if !ok {
			return protocol.Errorf(protocol.ErrInteractionStale, fmt.Sprintf("unknown purchase %q", in.PurchaseID))
		}
		owned := st.Purchased(p.ID)
		if owned >= p.Limit() {
			return protocol.Errorf(protocol.ErrInteractionStale, fmt.Sprintf("%s already owned %d/%d", p.ID, owned, p.Limit()))
		}
		if p.RequiresSkill != "" && st.Level(p.RequiresSkill) < p.RequiresLevel {
			return protocol.Errorf(protocol.ErrInteractionStale, fmt.Sprintf("%s requires %s %d", p.ID, p.RequiresSkill, p.RequiresLevel))
		}
		if cost := p.Cost.At(owned); st.GP() < cost {
			return protocol.Errorf(protocol.ErrInteractionStale, fmt.Sprintf("%s costs %d, have %d", p.ID, cost, st.GP()))
		}
		return nil
	case SellAll, StopActivity:
		return nil
	case nil:
		return protocol.Errorf(protocol.ErrInteractionStale, "nil interaction")
	}
	return protocol.Errorf(protocol.ErrInternal, fmt.Sprintf("unhandled interaction %T", in))
}

// Apply performs an interaction instantly. It never advances time.
func Apply(cats *catalogs.Catalogs, st state.GlobalState, in Interaction) (state.GlobalState, error) {
	if err := CanApply(cats, st, in); err != nil {
		return st, err
	}
	b := st.Edit()
	switch in := in.(type) {
	case SwitchActivity:
		if st.ActiveAction() == in.ActionID {
			return st, nil
		}
		a, _ := cats.Action(in.ActionID)
		b.SetActive(newActivity(a))
	case BuyUpgrade:
		p, _ := cats.Purchase(in.PurchaseID)
		owned := st.Purchased(p.ID)
		b.AddGP(-p.Cost.At(owned))
		b.SetPurchased(p.ID, owned+1)
		if p.Effect.Kind == catalogs.EffectInventorySlots {
			b.SetSlots(st.Slots() + int(p.Effect.Value))
		}
	case SellAll:
		var gp int64
		for _, item := range st.Items() {
			n := st.Count(item)
			gp += int64(cats.SellValue(item)) * int64(n)
			b.RemoveItem(item, n)
		}
		b.AddGP(gp)
	case StopActivity:
		b.SetActive(nil)
	}
	return b.Build(), nil
}

// newActivity starts an action with its cycle length still unrolled (total 0); the
// simulator rolls it on the next advance.
func newActivity(a catalogs.ActionDef) state.Activity {
	if a.Kind == catalogs.KindCombat {
		return state.CombatActivity{Action: a.ID}
	}
	return state.SkillActivity{Action: a.ID}
}
