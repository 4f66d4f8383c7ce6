package observer

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"idlecraft.ai/internal/protocol"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/engine"
	"idlecraft.ai/internal/sim/executor"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/plan"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

func dial(t *testing.T, srvURL string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srvURL, "http")
	c, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return c
}

func readType(t *testing.T, c *websocket.Conn) (string, []byte) {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return base.Type, b
}

func waitWatchers(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Watchers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("watchers=%d want %d", s.Watchers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatcherReceivesBacklogAndLiveSteps(t *testing.T) {
	cats := catalogs.Fixture()
	s := NewServer(nil)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()
	defer s.Close()

	p := plan.New(goal.ReachGP{Target: 100}, 9, []plan.Step{
		plan.InteractionStep{Interaction: engine.SwitchActivity{ActionID: "pickpocket_man"}},
		plan.WaitStep{Until: plan.CreditsAtLeast{Credits: 100}, MaxTicks: 3000, PlannedTicks: 1400, Action: "pickpocket_man", Reason: "goal_reached"},
	}, 0)
	if err := s.RunStart("run-1", "solve", p); err != nil {
		t.Fatalf("RunStart: %v", err)
	}

	c := dial(t, srv.URL)
	defer c.Close()
	if err := c.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, WatcherName: "test"}); err != nil {
		t.Fatalf("hello: %v", err)
	}

	typ, b := readType(t, c)
	if typ != protocol.TypeRunStart {
		t.Fatalf("first message %s", typ)
	}
	var start protocol.RunStartMsg
	_ = json.Unmarshal(b, &start)
	if start.RunID != "run-1" || start.Steps != 2 || start.PlannedTicks != 1400 || start.Goal != "gp:100" {
		t.Fatalf("run start: %+v", start)
	}

	waitWatchers(t, s, 1)
	rep := executor.StepReport{
		Index:        1,
		Step:         p.Steps[1],
		PlannedTicks: 1400,
		ActualTicks:  1400,
		Met:          true,
		State:        state.Empty(tuning.Defaults()),
		Boundaries:   []executor.BoundaryHit{{Step: 1, Boundary: plan.BoundaryInventoryPressure}},
	}
	if err := s.Step(cats, "run-1", rep); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := s.RunEnd("run-1", "exact", "", executor.ExecutionResult{PlannedTicks: 1400, ActualTicks: 1400}); err != nil {
		t.Fatalf("RunEnd: %v", err)
	}

	typ, b = readType(t, c)
	if typ != protocol.TypeStep {
		t.Fatalf("second message %s", typ)
	}
	var step protocol.StepMsg
	_ = json.Unmarshal(b, &step)
	if step.Kind != "wait" || step.Index != 1 || len(step.Boundaries) != 1 || step.Boundaries[0] != string(plan.BoundaryInventoryPressure) {
		t.Fatalf("step: %+v", step)
	}
	if typ, _ := readType(t, c); typ != protocol.TypeRunEnd {
		t.Fatalf("third message %s", typ)
	}
}

func TestRejectsWatcherWithoutHello(t *testing.T) {
	s := NewServer(nil)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	c := dial(t, srv.URL)
	defer c.Close()
	if err := c.WriteJSON(map[string]string{"type": "SUBSCRIBE", "protocol_version": protocol.Version}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := c.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
	if s.Watchers() != 0 {
		t.Fatalf("watcher registered without hello")
	}
}

func TestRunStartResetsBacklog(t *testing.T) {
	s := NewServer(nil)
	p := plan.New(goal.ReachGP{Target: 1}, 1, nil, 0)
	_ = s.RunStart("a", "solve", p)
	_ = s.RunEnd("a", "exact", "", executor.ExecutionResult{})
	_ = s.RunStart("b", "solve", p)
	s.mu.Lock()
	n := len(s.backlog)
	s.mu.Unlock()
	if n != 1 {
		t.Fatalf("backlog=%d want 1", n)
	}
}
