package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deckhand/internal/ipc"
	"deckhand/internal/logging"
	"deckhand/internal/session"
)

func TestStartReportsRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"start"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "Daemon already running")
}

func TestStopWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"stop"}, shortSocketPath(t), env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "== Recorder ==")
	requireContains(t, out, env.fake.Addr())
	requireContains(t, out, "protocol 1.11")
	requireContains(t, out, "1080p30")

	out, _, err = runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status ipc.StatusResponse
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status json: %v\n%s", err, out)
	}
	if !status.Running || status.Session.Status != session.StatusOK {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestStatusCommandWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"status"}, shortSocketPath(t), env.configPath)
	if err == nil || !strings.Contains(err.Error(), "deckhand start") {
		t.Fatalf("expected start hint, got %v", err)
	}
}

func TestClipsCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"clips"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("clips: %v", err)
	}
	requireContains(t, out, "Opener.mov")

	out, _, err = runCLI(t, []string{"clips", "--slot", "2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("clips --slot 2: %v", err)
	}
	requireContains(t, out, "No clips on slot 2")
}

func TestVariablesCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"variables", "status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("variables: %v", err)
	}
	var vars map[string]string
	if err := json.Unmarshal([]byte(out), &vars); err != nil {
		t.Fatalf("decode variables: %v", err)
	}
	if len(vars) != 1 || vars["status"] != "Stopped" {
		t.Fatalf("unexpected variables: %v", vars)
	}

	if _, _, err := runCLI(t, []string{"variables", "nope"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected unknown variable error")
	}
}

func TestTransportCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"transport", "play"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	requireContains(t, out, "play")
	if !env.fake.WaitFor("play", 1, time.Second) {
		t.Fatalf("device never received play; got %v", env.fake.Received())
	}

	if _, _, err := runCLI(t, []string{"transport", "goto", "--clip", "1"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("goto --clip: %v", err)
	}
	if !env.fake.WaitFor("goto: clip id: 1", 1, time.Second) {
		t.Fatalf("device never received goto; got %v", env.fake.Received())
	}

	if _, _, err := runCLI(t, []string{"transport", "goto"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected goto without a target to fail")
	}
	if _, _, err := runCLI(t, []string{"transport", "shuttle", "fast"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected invalid shuttle speed to fail")
	}
}

func TestCueCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"cue", "out", "00:00:10:00"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("cue out: %v", err)
	}
	requireContains(t, out, "00:00:10:00")

	if _, _, err := runCLI(t, []string{"cue", "arm"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("cue arm: %v", err)
	}
	if got := env.daemon.Status().Session.Cue.Phase; got != "armed" {
		t.Fatalf("cue phase = %q, want armed", got)
	}

	if _, _, err := runCLI(t, []string{"cue", "reset"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("cue reset: %v", err)
	}
	if got := env.daemon.Status().Session.Cue.Phase; got != "idle" {
		t.Fatalf("cue phase = %q, want idle", got)
	}
}

func TestModeCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"mode", "polling", "--interval", "5"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("mode polling: %v", err)
	}
	requireContains(t, out, "Timecode mode: polling")
	requireContains(t, out, "Polling every 15ms")

	if _, _, err := runCLI(t, []string{"mode", "sometimes"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected unknown mode to fail")
	}
}

func TestCheckCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"check"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "Recorder")
	requireContains(t, out, "State directory")
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.cfg.Paths.LogDir, logging.LogFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected logs output %q", out)
	}
}
