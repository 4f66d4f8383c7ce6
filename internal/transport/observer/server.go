package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"idlecraft.ai/internal/protocol"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/executor"
	"idlecraft.ai/internal/sim/meta"
	"idlecraft.ai/internal/sim/plan"
)

const (
	watcherBuffer = 1024
	maxBacklog    = 4096
)

// Server fans execution progress out to websocket watchers. Watchers that join mid-run
// first receive the backlog of the current run.
type Server struct {
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	dropped  atomic.Uint64

	mu       sync.Mutex
	watchers map[string]chan []byte
	backlog  [][]byte
	closed   bool
}

func NewServer(logger *log.Logger) *Server {
	return &Server{
		log:      logger,
		watchers: map[string]chan []byte{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send HELLO first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var hello protocol.HelloMsg
		if err := json.Unmarshal(msg, &hello); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad hello"), time.Now().Add(time.Second))
			return
		}
		if hello.Type != protocol.TypeHello || hello.ProtocolVersion != protocol.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
			return
		}

		wid := fmt.Sprintf("W%d", s.nextID.Add(1))
		out, ok := s.join(wid)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
			return
		}
		defer s.leave(wid)
		if s.log != nil {
			s.log.Printf("observer: watcher %s joined (%s)", wid, hello.WatcherName)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-out:
					if !ok {
						_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run closed"), time.Now().Add(time.Second))
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: watchers only send HELLO; drain until they go away.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) join(id string) (chan []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	ch := make(chan []byte, watcherBuffer+len(s.backlog))
	for _, b := range s.backlog {
		ch <- b
	}
	s.watchers[id] = ch
	return ch, true
}

func (s *Server) leave(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.watchers[id]; ok {
		delete(s.watchers, id)
		close(ch)
	}
}

// Watchers returns the number of connected watchers.
func (s *Server) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

// Dropped returns how many messages were not delivered to slow watchers.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

// Publish broadcasts one protocol message. A RUN_START message resets the backlog.
func (s *Server) Publish(msgType string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if msgType == protocol.TypeRunStart {
		s.backlog = s.backlog[:0]
	}
	if len(s.backlog) < maxBacklog {
		s.backlog = append(s.backlog, b)
	}
	for _, ch := range s.watchers {
		select {
		case ch <- b:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

func (s *Server) RunStart(runID, mode string, p plan.Plan) error {
	return s.Publish(protocol.TypeRunStart, protocol.RunStartMsg{
		Type:            protocol.TypeRunStart,
		ProtocolVersion: protocol.Version,
		RunID:           runID,
		Goal:            p.Goal.String(),
		Mode:            mode,
		Seed:            p.Seed,
		Steps:           len(p.Steps),
		PlannedTicks:    p.TotalTicks,
	})
}

func (s *Server) Step(cats *catalogs.Catalogs, runID string, rep executor.StepReport) error {
	msg := protocol.StepMsg{
		Type:            protocol.TypeStep,
		ProtocolVersion: protocol.Version,
		RunID:           runID,
		Index:           rep.Index,
		Kind:            StepKind(rep.Step),
		Description:     plan.Describe(cats, rep.Step),
		PlannedTicks:    rep.PlannedTicks,
		ActualTicks:     rep.ActualTicks,
		Tick:            rep.State.Tick(),
		GP:              rep.State.GP(),
		Deaths:          rep.State.Deaths(),
	}
	for _, b := range rep.Boundaries {
		msg.Boundaries = append(msg.Boundaries, string(b.Boundary))
	}
	return s.Publish(protocol.TypeStep, msg)
}

func (s *Server) Phase(runID string, ph meta.Phase) error {
	return s.Publish(protocol.TypePhase, protocol.PhaseMsg{
		Type:            protocol.TypePhase,
		ProtocolVersion: protocol.Version,
		RunID:           runID,
		Index:           ph.Index,
		Milestone:       ph.Milestone.ID(),
		Status:          string(ph.Status),
		PlannedTicks:    ph.Execution.PlannedTicks,
		ActualTicks:     ph.Execution.ActualTicks,
	})
}

func (s *Server) RunEnd(runID, outcome, code string, res executor.ExecutionResult) error {
	return s.Publish(protocol.TypeRunEnd, protocol.RunEndMsg{
		Type:            protocol.TypeRunEnd,
		ProtocolVersion: protocol.Version,
		RunID:           runID,
		Outcome:         outcome,
		Code:            code,
		PlannedTicks:    res.PlannedTicks,
		ActualTicks:     res.ActualTicks,
		Deaths:          res.TotalDeaths,
	})
}

// Close disconnects every watcher after its queued messages are written.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
}

// StepKind names a plan step the way the plan file does.
func StepKind(st plan.Step) string {
	switch st.(type) {
	case plan.InteractionStep:
		return "interaction"
	case plan.WaitStep:
		return "wait"
	case plan.MacroStep:
		return "macro"
	}
	return "unknown"
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
