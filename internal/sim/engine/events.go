package engine

import "idlecraft.ai/internal/sim/catalogs"

type EventKind string

const (
	EventCompleted      EventKind = "completed"
	EventFailed         EventKind = "failed"
	EventLevelUp        EventKind = "level_up"
	EventItemGained     EventKind = "item_gained"
	EventItemConsumed   EventKind = "item_consumed"
	EventDropped        EventKind = "dropped"
	EventStopped        EventKind = "stopped"
	EventDeath          EventKind = "death"
	EventRockDepleted   EventKind = "rock_depleted"
	EventRockRespawned  EventKind = "rock_respawned"
	EventPlanted        EventKind = "planted"
	EventHarvested      EventKind = "harvested"
	EventTownshipIncome EventKind = "township_income"
)

type StopReason string

const (
	StopInputsExhausted StopReason = "inputs_exhausted"
	StopInventoryFull   StopReason = "inventory_full"
	StopDeath           StopReason = "death"
)

// Event records one observable change. Only the fields relevant to Kind are set.
type Event struct {
	Tick   int64          `json:"tick"`
	Kind   EventKind      `json:"kind"`
	Action string         `json:"action,omitempty"`
	Skill  catalogs.Skill `json:"skill,omitempty"`
	Item   string         `json:"item,omitempty"`
	Count  int            `json:"count,omitempty"`
	Level  int            `json:"level,omitempty"`
	GP     int64          `json:"gp,omitempty"`
	Reason StopReason     `json:"reason,omitempty"`
}
