package plan

// Boundary names a point where a plan segment ends and replanning may start.
type Boundary string

const (
	BoundaryGoalReached         Boundary = "goal_reached"
	BoundaryUpgradeAffordable   Boundary = "upgrade_affordable"
	BoundaryUnlockObserved      Boundary = "unlock_observed"
	BoundaryInputsDepleted      Boundary = "inputs_depleted"
	BoundaryInventoryPressure   Boundary = "inventory_pressure"
	BoundaryHorizonCap          Boundary = "horizon_cap"
	BoundaryInteractionRejected Boundary = "interaction_rejected"
)

// BoundaryForReason maps the reason a wait was planned with to the boundary it anticipates.
// Waits planned toward item batches anticipate no boundary.
func BoundaryForReason(reason string) (Boundary, bool) {
	switch reason {
	case "goal_reached":
		return BoundaryGoalReached, true
	case "upgrade_affordable":
		return BoundaryUpgradeAffordable, true
	case "unlock_imminent":
		return BoundaryUnlockObserved, true
	case "inputs_depleted":
		return BoundaryInputsDepleted, true
	case "inventory_pressure":
		return BoundaryInventoryPressure, true
	case "horizon":
		return BoundaryHorizonCap, true
	}
	return "", false
}
