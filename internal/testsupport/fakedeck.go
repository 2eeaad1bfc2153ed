package testsupport

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// ReplyFunc produces the raw reply for one received command line. An empty
// string sends nothing, which lets tests simulate an unresponsive device.
type ReplyFunc func(line string) string

// FakeDeck is a scripted HyperDeck control server on a loopback port.
type FakeDeck struct {
	t  testing.TB
	ln net.Listener

	mu       sync.Mutex
	greeting string
	handlers map[string]ReplyFunc
	received []string
	conns    []net.Conn
	notify   chan string
}

// Block formats a protocol reply. Without lines it renders a single-line
// reply, otherwise a block terminated by a blank line.
func Block(code int, text string, lines ...string) string {
	if len(lines) == 0 {
		return fmt.Sprintf("%d %s\r\n", code, text)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s:\r\n", code, text)
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return b.String()
}

// NewFakeDeck starts a fake device that answers the setup commands with an
// empty two slot deck. It is closed when the test ends.
func NewFakeDeck(t testing.TB) *FakeDeck {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen fake deck: %v", err)
	}
	f := &FakeDeck{
		t:        t,
		ln:       ln,
		greeting: Block(500, "connection info", "protocol version: 1.11", "model: HyperDeck Studio Mini"),
		handlers: map[string]ReplyFunc{},
		notify:   make(chan string, 256),
	}
	f.Handle("device info", Block(204, "device info", "protocol version: 1.11", "model: HyperDeck Studio Mini", "slot count: 2"))
	f.HandleFunc("slot info", func(line string) string {
		id := strings.TrimSpace(strings.TrimPrefix(line, "slot info: slot id:"))
		return Block(202, "slot info", "slot id: "+id, "status: empty", "recording time: 0")
	})
	f.Handle("transport info", Block(208, "transport info",
		"status: stopped", "speed: 0", "slot id: 1", "clip id: none", "single clip: false",
		"display timecode: 00:00:00:00", "timecode: 00:00:00:00", "video format: 1080p30", "loop: false"))
	f.HandleFunc("configuration", func(line string) string {
		if strings.Contains(line, ":") {
			return Block(200, "ok")
		}
		return Block(211, "configuration", "audio input: embedded", "video input: SDI", "file format: QuickTimeProRes")
	})
	f.Handle("clips count", Block(214, "clips count", "clip count: 0"))
	f.Handle("clips get", Block(205, "clips info", "clip count: 0"))
	go f.accept()
	t.Cleanup(f.Close)
	return f
}

// Addr returns host:port of the listener.
func (f *FakeDeck) Addr() string { return f.ln.Addr().String() }

// Host returns the listener host.
func (f *FakeDeck) Host() string {
	host, _, _ := net.SplitHostPort(f.Addr())
	return host
}

// Port returns the listener port.
func (f *FakeDeck) Port() int {
	_, port, _ := net.SplitHostPort(f.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

// SetGreeting replaces the connection banner.
func (f *FakeDeck) SetGreeting(raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.greeting = raw
}

// Handle answers every command named name with a fixed reply.
func (f *FakeDeck) Handle(name, reply string) {
	f.HandleFunc(name, func(string) string { return reply })
}

// HandleFunc answers commands named name with fn.
func (f *FakeDeck) HandleFunc(name string, fn ReplyFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = fn
}

// Push writes an asynchronous block to every open connection.
func (f *FakeDeck) Push(raw string) {
	f.mu.Lock()
	conns := append([]net.Conn(nil), f.conns...)
	f.mu.Unlock()
	for _, conn := range conns {
		_, _ = conn.Write([]byte(raw))
	}
}

// Received returns every command line received so far.
func (f *FakeDeck) Received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

// Count returns how many received lines start with prefix.
func (f *FakeDeck) Count(prefix string) int {
	n := 0
	for _, line := range f.Received() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

// WaitFor blocks until a line starting with prefix has been received n times.
func (f *FakeDeck) WaitFor(prefix string, n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for f.Count(prefix) < n {
		select {
		case <-f.notify:
		case <-deadline:
			return false
		}
	}
	return true
}

// DropConnections closes every accepted connection.
func (f *FakeDeck) DropConnections() {
	f.mu.Lock()
	conns := f.conns
	f.conns = nil
	f.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}

// Close stops the listener and drops all connections.
func (f *FakeDeck) Close() {
	_ = f.ln.Close()
	f.DropConnections()
}

func (f *FakeDeck) accept() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		greeting := f.greeting
		f.mu.Unlock()
		if _, err := conn.Write([]byte(greeting)); err != nil {
			_ = conn.Close()
			continue
		}
		go f.serve(conn)
	}
}

func (f *FakeDeck) serve(conn net.Conn) {
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		name, _, _ := strings.Cut(line, ":")

		f.mu.Lock()
		f.received = append(f.received, line)
		handler, ok := f.handlers[name]
		f.mu.Unlock()
		select {
		case f.notify <- line:
		default:
		}

		reply := Block(200, "ok")
		if ok {
			reply = handler(line)
		}
		if reply == "" {
			continue
		}
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}
