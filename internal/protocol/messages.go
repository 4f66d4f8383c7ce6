package protocol

// HELLO (watcher -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	WatcherName     string `json:"watcher_name,omitempty"`
}

// RUN_START (server -> watcher)
type RunStartMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Goal            string `json:"goal"`
	Mode            string `json:"mode"`
	Seed            int64  `json:"seed"`
	Steps           int    `json:"steps"`
	PlannedTicks    int64  `json:"planned_ticks"`
}

// STEP (server -> watcher), one per executed plan step.
type StepMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	RunID           string   `json:"run_id"`
	Index           int      `json:"index"`
	Kind            string   `json:"kind"`
	Description     string   `json:"description"`
	PlannedTicks    int64    `json:"planned_ticks"`
	ActualTicks     int64    `json:"actual_ticks"`
	Tick            int64    `json:"tick"`
	GP              int64    `json:"gp"`
	Deaths          int      `json:"deaths"`
	Boundaries      []string `json:"boundaries,omitempty"`
}

// PHASE (server -> watcher), one per completed meta-plan phase.
type PhaseMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Index           int    `json:"index"`
	Milestone       string `json:"milestone"`
	Status          string `json:"status"`
	PlannedTicks    int64  `json:"planned_ticks"`
	ActualTicks     int64  `json:"actual_ticks"`
}

// RUN_END (server -> watcher)
type RunEndMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Outcome         string `json:"outcome"`
	Code            string `json:"code,omitempty"`
	PlannedTicks    int64  `json:"planned_ticks"`
	ActualTicks     int64  `json:"actual_ticks"`
	Deaths          int    `json:"deaths"`
}
