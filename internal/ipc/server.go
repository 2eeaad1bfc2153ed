package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"deckhand/internal/daemon"
	"deckhand/internal/deck"
	"deckhand/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. shutdown,
// when set, is called by the Stop method to end the daemon process.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, shutdown func()) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx, shutdown: shutdown}
	if err := rpcServer.RegisterName("Deckhand", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status()
	return nil
}

func (s *service) Clips(req ClipsRequest, resp *ClipsResponse) error {
	if req.Slot < 0 {
		return fmt.Errorf("invalid slot %d", req.Slot)
	}
	slot := req.Slot
	if slot == 0 {
		slot = s.daemon.Session().Transport().SlotID
	}
	resp.Slot = slot
	resp.Clips = s.daemon.Clips(slot)
	if resp.Clips == nil {
		resp.Clips = []deck.Clip{}
	}
	return nil
}

func (s *service) Variables(_ VariablesRequest, resp *VariablesResponse) error {
	resp.Variables = s.daemon.Variables()
	return nil
}

func (s *service) Action(req ActionRequest, resp *ActionResponse) error {
	s.log().Debug("action requested", logging.String("action", string(req.Action.Kind)))
	res, err := s.daemon.IssueCommand(s.ctx, req.Action)
	resp.Result = res
	return err
}

func (s *service) SetTimecodeMode(req ModeRequest, resp *ModeResponse) error {
	interval := time.Duration(req.PollIntervalMS) * time.Millisecond
	if err := s.daemon.SetTimecodeMode(s.ctx, req.Mode, interval); err != nil {
		return err
	}
	snap := s.daemon.Session().Snapshot()
	resp.Mode = snap.TimecodeMode
	resp.PollInterval = snap.PollInterval
	resp.PollerRunning = snap.PollerRunning
	return nil
}

func (s *service) Connect(_ ConnectRequest, resp *ConnectResponse) error {
	s.log().Debug("connect requested")
	if err := s.daemon.Connect(s.ctx); err != nil {
		return err
	}
	resp.Status, _ = s.daemon.Session().Status()
	resp.Message = "connected"
	s.log().Info("device connected via IPC",
		logging.String(logging.FieldEventType, "ipc_connect"))
	return nil
}

func (s *service) Disconnect(_ DisconnectRequest, resp *DisconnectResponse) error {
	s.daemon.Disconnect()
	resp.Disconnected = true
	s.log().Info("device disconnected via IPC",
		logging.String(logging.FieldEventType, "ipc_disconnect"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	if s.shutdown == nil {
		return errors.New("daemon stop is not available")
	}
	resp.Stopping = true
	s.log().Info("daemon stop requested via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	go s.shutdown()
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
