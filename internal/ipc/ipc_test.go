package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deckhand/internal/daemon"
	"deckhand/internal/ipc"
	"deckhand/internal/logging"
	"deckhand/internal/session"
	"deckhand/internal/testsupport"
)

func socketPath(t *testing.T) string {
	t.Helper()
	// unix socket paths are length limited, so keep them out of t.TempDir.
	dir, err := os.MkdirTemp("", "dh")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "deckhand.sock")
}

func TestIPCServerClient(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	withClips := testsupport.Block(205, "clips info", "clip count: 1", "1: Opener.mov 00:00:00:00 00:00:20:00")
	fake.Handle("clips count", testsupport.Block(214, "clips count", "clip count: 1"))
	fake.Handle("clips get", withClips)
	cfg := testsupport.NewConfig(t, testsupport.WithFakeDeck(fake))
	logger := logging.NewNop()
	d, err := daemon.New(cfg, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stopped := make(chan struct{})
	socket := socketPath(t)
	srv, err := ipc.NewServer(ctx, socket, d, logger, func() { close(stopped) })
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || status.Session.Status != session.StatusOK {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Session.Transport.VideoFormat != "1080p30" {
		t.Fatalf("unexpected transport: %+v", status.Session.Transport)
	}

	clips, err := client.Clips(0)
	if err != nil {
		t.Fatalf("Clips RPC failed: %v", err)
	}
	if clips.Slot != 1 || len(clips.Clips) != 1 || clips.Clips[0].Name != "Opener.mov" {
		t.Fatalf("unexpected clips: %+v", clips)
	}

	vars, err := client.Variables()
	if err != nil {
		t.Fatalf("Variables RPC failed: %v", err)
	}
	if vars.Variables["clipCount"] != "1" {
		t.Fatalf("unexpected variables: %v", vars.Variables)
	}

	action, err := client.Action(ipc.ActionRequest{Action: session.Action{Kind: session.KindGotoClip, Number: 1}})
	if err != nil {
		t.Fatalf("Action RPC failed: %v", err)
	}
	if action.Result.Command != "goto: clip id: 1" {
		t.Fatalf("unexpected action result: %+v", action.Result)
	}

	if _, err := client.Action(ipc.ActionRequest{Action: session.Action{Kind: "warp"}}); err == nil ||
		!strings.Contains(err.Error(), "invalid action") {
		t.Fatalf("expected invalid action error, got %v", err)
	}

	mode, err := client.SetTimecodeMode(ipc.ModeRequest{Mode: "polling", PollIntervalMS: 5})
	if err != nil {
		t.Fatalf("SetTimecodeMode RPC failed: %v", err)
	}
	if mode.Mode != "polling" || mode.PollInterval != "15ms" || !mode.PollerRunning {
		t.Fatalf("unexpected mode response: %+v", mode)
	}

	if _, err := client.Disconnect(); err != nil {
		t.Fatalf("Disconnect RPC failed: %v", err)
	}
	if status, _ := d.Session().Status(); status != session.StatusError {
		t.Fatalf("expected error status after disconnect, got %s", status)
	}
	conn, err := client.Connect()
	if err != nil {
		t.Fatalf("Connect RPC failed: %v", err)
	}
	if conn.Status != session.StatusOK {
		t.Fatalf("unexpected connect response: %+v", conn)
	}

	notifyResp, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if notifyResp.Sent || notifyResp.Message == "" {
		t.Fatalf("expected unsent notification with message, got %#v", notifyResp)
	}

	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stopResp.Stopping {
		t.Fatal("expected stop response to be true")
	}
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown was not requested")
	}
}

func TestIPCServerStopUnavailable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	socket := socketPath(t)
	srv, err := ipc.NewServer(context.Background(), socket, d, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	defer srv.Close()

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	defer client.Close()

	if _, err := client.Stop(); err == nil {
		t.Fatal("expected stop to fail without a shutdown hook")
	}
	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon not running")
	}
}

func TestDialMissingSocket(t *testing.T) {
	if _, err := ipc.Dial(filepath.Join(t.TempDir(), "missing.sock")); err == nil {
		t.Fatal("expected dial error")
	}
}
