package oscbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"deckhand/internal/logging"
	"deckhand/internal/session"
)

// Prefix is the root of every control address.
const Prefix = "/deckhand"

const actionTimeout = 10 * time.Second

// Controller is the session surface driven by OSC messages.
type Controller interface {
	IssueCommand(ctx context.Context, a session.Action) (session.Result, error)
}

// Server listens for OSC control messages on UDP.
type Server struct {
	listen     string
	ctrl       Controller
	logger     *slog.Logger
	dispatcher *osc.StandardDispatcher

	mu       sync.Mutex
	conn     net.PacketConn
	server   *osc.Server
	done     chan struct{}
	closing  bool
	inflight sync.WaitGroup
}

type route struct {
	address string
	build   func(msg *osc.Message) (session.Action, error)
}

// NewServer registers the control surface. Call Start to begin listening.
func NewServer(listen string, ctrl Controller, logger *slog.Logger) (*Server, error) {
	s := &Server{
		listen:     listen,
		ctrl:       ctrl,
		logger:     logging.NewComponentLogger(logger, "osc"),
		dispatcher: osc.NewStandardDispatcher(),
	}
	for _, r := range routes() {
		if err := s.dispatcher.AddMsgHandler(r.address, func(msg *osc.Message) { s.handle(r, msg) }); err != nil {
			return nil, fmt.Errorf("register osc address %s: %w", r.address, err)
		}
	}
	return s, nil
}

func routes() []route {
	simple := func(kind session.Kind) func(*osc.Message) (session.Action, error) {
		return func(*osc.Message) (session.Action, error) { return session.Action{Kind: kind}, nil }
	}
	point := func(kind session.Kind) func(*osc.Message) (session.Action, error) {
		return func(msg *osc.Message) (session.Action, error) {
			tc, _ := stringArg(msg, 0)
			return session.Action{Kind: kind, Timecode: tc}, nil
		}
	}
	return []route{
		{Prefix + "/play", simple(session.KindPlay)},
		{Prefix + "/stop", simple(session.KindStop)},
		{Prefix + "/record", func(msg *osc.Message) (session.Action, error) {
			if name, ok := stringArg(msg, 0); ok && name != "" {
				return session.Action{Kind: session.KindRecordName, Name: name}, nil
			}
			return session.Action{Kind: session.KindRecord}, nil
		}},
		{Prefix + "/cue/arm", simple(session.KindArmCue)},
		{Prefix + "/cue/stop/arm", simple(session.KindArmStop)},
		{Prefix + "/cue/reset", simple(session.KindResetCue)},
		{Prefix + "/cue/in", point(session.KindSetInPoint)},
		{Prefix + "/cue/out", point(session.KindSetOutPoint)},
		{Prefix + "/goto/clip", func(msg *osc.Message) (session.Action, error) {
			n, err := intArg(msg, 0)
			if err != nil {
				return session.Action{}, err
			}
			return session.Action{Kind: session.KindGotoClip, Number: n}, nil
		}},
		{Prefix + "/goto/timecode", func(msg *osc.Message) (session.Action, error) {
			tc, ok := stringArg(msg, 0)
			if !ok {
				return session.Action{}, errors.New("expected timecode string argument")
			}
			return session.Action{Kind: session.KindGoto, Timecode: tc}, nil
		}},
		{Prefix + "/shuttle", func(msg *osc.Message) (session.Action, error) {
			n, err := intArg(msg, 0)
			if err != nil {
				return session.Action{}, err
			}
			return session.Action{Kind: session.KindShuttle, Number: n}, nil
		}},
	}
}

func (s *Server) handle(r route, msg *osc.Message) {
	// The dispatcher matches addresses as unanchored patterns, so one
	// message can reach several handlers.
	if msg.Address != r.address {
		return
	}
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	logger := s.logger.With(logging.String("address", msg.Address))
	action, err := r.build(msg)
	if err != nil {
		logging.WarnWithContext(logger, "osc message rejected", "osc_rejected",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the argument types sent by the control surface"),
			logging.String(logging.FieldImpact, "the message was ignored"),
		)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	if _, err := s.ctrl.IssueCommand(ctx, action); err != nil {
		logging.WarnWithContext(logger, "osc action failed", "osc_action_failed",
			logging.String("action", string(action.Kind)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the device did not change"),
		)
		return
	}
	logger.Debug("osc action handled", logging.String("action", string(action.Kind)))
}

// Dispatch routes one message synchronously, without the network.
func (s *Server) Dispatch(msg *osc.Message) {
	s.dispatcher.Dispatch(msg)
}

// Start binds the UDP listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}
	conn, err := net.ListenPacket("udp", s.listen)
	if err != nil {
		return fmt.Errorf("listen osc %s: %w", s.listen, err)
	}
	server := &osc.Server{Addr: conn.LocalAddr().String(), Dispatcher: s.dispatcher}
	done := make(chan struct{})
	s.closing = false
	s.conn = conn
	s.server = server
	s.done = done
	go func() {
		defer close(done)
		if err := server.Serve(conn); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Debug("osc server stopped", logging.Error(err))
		}
	}()
	s.logger.Info("osc control surface listening", logging.String("listen", conn.LocalAddr().String()))
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn.LocalAddr().String()
	}
	return s.listen
}

// Close stops listening and waits for the serve loop and any running
// handlers to exit. Messages that arrive after Close are dropped.
func (s *Server) Close() error {
	s.mu.Lock()
	conn := s.conn
	done := s.done
	s.conn = nil
	s.server = nil
	if conn != nil {
		s.closing = true
	}
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	<-done
	s.inflight.Wait()
	return err
}

func intArg(msg *osc.Message, i int) (int, error) {
	if i >= len(msg.Arguments) {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	switch v := msg.Arguments[i].(type) {
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float32:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("argument %d: %w", i, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("argument %d: unsupported type %T", i, v)
	}
}

func stringArg(msg *osc.Message, i int) (string, bool) {
	if i >= len(msg.Arguments) {
		return "", false
	}
	v, ok := msg.Arguments[i].(string)
	return v, ok
}
