package hyperdeck

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"deckhand/internal/logging"
)

const (
	// DefaultPort is the HyperDeck control port.
	DefaultPort = 9993

	defaultCommandTimeout = 5 * time.Second
	defaultEventBuffer    = 256
	defaultQueueDepth     = 64
)

// EventKind classifies asynchronous blocks.
type EventKind string

const (
	EventTransport       EventKind = "transport"
	EventSlot            EventKind = "slot"
	EventConfiguration   EventKind = "configuration"
	EventDisplayTimecode EventKind = "display_timecode"
	EventOther           EventKind = "other"
	EventDisconnected    EventKind = "disconnected"
)

// Event is one asynchronous notification or the final disconnect.
type Event struct {
	Kind     EventKind
	Response Response
	// Err is the connection failure for EventDisconnected; nil after Close.
	Err error
}

// Options tunes a Client.
type Options struct {
	CommandTimeout time.Duration
	EventBuffer    int
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = defaultCommandTimeout
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = defaultEventBuffer
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	return o
}

type result struct {
	resp Response
	err  error
}

type request struct {
	ctx    context.Context
	cmd    Command
	result chan result
}

// Client is one control connection to a device.
type Client struct {
	addr    string
	conn    net.Conn
	reader  *bufio.Reader
	logger  *slog.Logger
	timeout time.Duration

	queue    chan *request
	replies  chan Response
	events   chan Event
	done     chan struct{}
	finished chan struct{}

	closeOnce sync.Once
	cause     error
	wg        sync.WaitGroup

	dropped   atomic.Uint64
	discarded atomic.Uint64
}

// Dial connects to addr and waits for the device greeting.
func Dial(ctx context.Context, addr string, opts Options) (*Client, ConnectionInfo, error) {
	opts = opts.withDefaults()
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, ConnectionInfo{}, &ConnectionError{Addr: addr, Err: err}
	}

	reader := bufio.NewReader(conn)
	deadline := time.Now().Add(opts.CommandTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetReadDeadline(deadline)
	greeting, err := readBlock(reader)
	if err != nil {
		_ = conn.Close()
		return nil, ConnectionInfo{}, &ConnectionError{Addr: addr, Err: fmt.Errorf("read greeting: %w", err)}
	}
	if greeting.Code != codeConnectionInfo {
		_ = conn.Close()
		return nil, ConnectionInfo{}, &ConnectionError{Addr: addr, Err: fmt.Errorf("unexpected greeting %d %s", greeting.Code, greeting.Text)}
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &Client{
		addr:     addr,
		conn:     conn,
		reader:   reader,
		logger:   opts.Logger,
		timeout:  opts.CommandTimeout,
		queue:    make(chan *request, defaultQueueDepth),
		replies:  make(chan Response, 1),
		events:   make(chan Event, opts.EventBuffer),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	c.wg.Add(2)
	go c.read()
	go c.dispatch()
	return c, decodeConnectionInfo(greeting), nil
}

// Addr returns the dialed address.
func (c *Client) Addr() string { return c.addr }

// Events delivers asynchronous blocks in arrival order. The channel is closed
// after the connection ends.
func (c *Client) Events() <-chan Event { return c.events }

// Dropped returns the number of asynchronous blocks lost to a full mailbox.
func (c *Client) Dropped() uint64 { return c.dropped.Load() }

// Discarded returns the number of late replies thrown away after timeouts.
func (c *Client) Discarded() uint64 { return c.discarded.Load() }

// Done is closed once the connection is shutting down.
func (c *Client) Done() <-chan struct{} { return c.done }

// Send queues cmd behind any outstanding command and waits for its reply.
func (c *Client) Send(ctx context.Context, cmd Command) (Response, error) {
	req := &request{ctx: ctx, cmd: cmd, result: make(chan result, 1)}
	select {
	case c.queue <- req:
	case <-c.done:
		return Response{}, c.connErr()
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	select {
	case r := <-req.result:
		return r.resp, r.err
	case <-c.done:
		select {
		case r := <-req.result:
			return r.resp, r.err
		default:
			return Response{}, c.connErr()
		}
	}
}

// Close releases the connection and waits for its goroutines. It is safe to
// call more than once.
func (c *Client) Close() error {
	c.shutdown(nil)
	<-c.finished
	return nil
}

func (c *Client) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.cause = cause
		close(c.done)
		_ = c.conn.Close()
		go c.finish()
	})
}

func (c *Client) finish() {
	c.wg.Wait()
	for drained := false; !drained; {
		select {
		case req := <-c.queue:
			req.result <- result{err: c.connErr()}
		default:
			drained = true
		}
	}
	c.publish(Event{Kind: EventDisconnected, Err: c.cause})
	close(c.events)
	close(c.finished)
}

func (c *Client) connErr() error {
	if c.cause != nil {
		return c.cause
	}
	return &ConnectionError{Addr: c.addr}
}

func (c *Client) read() {
	defer c.wg.Done()
	for {
		resp, err := readBlock(c.reader)
		if err != nil {
			select {
			case <-c.done:
			default:
				if err == io.EOF {
					err = fmt.Errorf("device closed connection")
				}
				c.shutdown(&ConnectionError{Addr: c.addr, Err: err})
			}
			return
		}
		if resp.Async() {
			c.publish(Event{Kind: classify(resp), Response: resp})
			continue
		}
		select {
		case c.replies <- resp:
		case <-c.done:
			return
		}
	}
}

func (c *Client) publish(ev Event) {
	select {
	case c.events <- ev:
	default:
		n := c.dropped.Add(1)
		logging.WarnWithContext(c.logger, "notification dropped", "notification_dropped",
			logging.String("kind", string(ev.Kind)),
			logging.Uint64("dropped_total", n),
			logging.String(logging.FieldErrorHint, "state consumer is not keeping up"),
			logging.String(logging.FieldImpact, "state may lag until the next poll or notification"),
		)
	}
}

func (c *Client) dispatch() {
	defer c.wg.Done()
	orphans := 0
	for {
		select {
		case <-c.done:
			return
		case resp := <-c.replies:
			orphans = c.discard(resp, orphans)
		case req := <-c.queue:
			orphans = c.roundTrip(req, orphans)
		}
	}
}

func (c *Client) discard(resp Response, orphans int) int {
	c.discarded.Add(1)
	c.logger.Debug("discarded reply", logging.Int("code", resp.Code), logging.String("text", resp.Text), logging.Int("orphans", orphans))
	if orphans > 0 {
		return orphans - 1
	}
	return 0
}

func (c *Client) roundTrip(req *request, orphans int) int {
	if err := req.ctx.Err(); err != nil {
		req.result <- result{err: err}
		return orphans
	}
	logger := logging.WithContext(req.ctx, c.logger)
	line := req.cmd.Wire()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if _, err := io.WriteString(c.conn, line+"\r\n"); err != nil {
		cerr := &ConnectionError{Addr: c.addr, Err: err}
		req.result <- result{err: cerr}
		c.shutdown(cerr)
		return orphans
	}
	logger.Debug("command sent", logging.String("command", line))

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	for {
		select {
		case resp := <-c.replies:
			if orphans > 0 {
				orphans = c.discard(resp, orphans)
				continue
			}
			if resp.Failed() {
				req.result <- result{resp: resp, err: &CommandError{Command: req.cmd.Name, Code: resp.Code, Message: resp.Text}}
			} else {
				req.result <- result{resp: resp}
			}
			return orphans
		case <-timer.C:
			terr := &TimeoutError{Command: req.cmd.Name, After: c.timeout}
			if orphans > 0 {
				// An earlier reply never came, so replies can no longer be
				// paired with commands. Drop the connection to resync.
				cerr := &ConnectionError{Addr: c.addr, Err: terr}
				logging.WarnWithContext(logger, "reply stream out of step", "replies_desynced",
					logging.String("command", line),
					logging.Int("orphans", orphans),
					logging.String(logging.FieldImpact, "the connection is closed and must be re-established"),
				)
				req.result <- result{err: cerr}
				c.shutdown(cerr)
				return orphans
			}
			req.result <- result{err: terr}
			return orphans + 1
		case <-req.ctx.Done():
			req.result <- result{err: req.ctx.Err()}
			return orphans + 1
		case <-c.done:
			req.result <- result{err: c.connErr()}
			return orphans
		}
	}
}

func classify(resp Response) EventKind {
	text := strings.ToLower(resp.Text)
	switch {
	case strings.Contains(text, "transport"):
		return EventTransport
	case strings.Contains(text, "slot"):
		return EventSlot
	case strings.Contains(text, "configuration"):
		return EventConfiguration
	case strings.Contains(text, "timecode"):
		return EventDisplayTimecode
	default:
		return EventOther
	}
}
