package ipc_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"pmxfactory/internal/daemon"
	"pmxfactory/internal/factory"
	"pmxfactory/internal/ipc"
	"pmxfactory/internal/journal"
	"pmxfactory/internal/logging"
	"pmxfactory/internal/metrics"
	"pmxfactory/internal/testsupport"
)

type harness struct {
	client   *ipc.Client
	backends *testsupport.Backends
	logPath  string
	shutdown chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	logger := logging.NewNop()
	b := testsupport.NewBackends()
	m := metrics.New()
	f := factory.New(cfg, factory.Backends{Host: b.Host, Linker: b.Linker, Registry: b.Registry}, store, m, logger)
	d, err := daemon.New(cfg, store, f, m, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	h := &harness{backends: b, logPath: d.LogPath(), shutdown: make(chan struct{})}
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger, func() { close(h.shutdown) })
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") || strings.Contains(err.Error(), "invalid argument") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	h.client = client
	return h
}

func TestIPCCreateAndList(t *testing.T) {
	h := newHarness(t)

	status, err := h.client.Status(false)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.JournalDriver != "sqlite" {
		t.Fatalf("unexpected status: %+v", status)
	}

	strip, err := h.client.CreateChannelStrip(ipc.CreateChannelStripRequest{RequestID: "cli-1", Name: "Keys", Kind: "basic"})
	if err != nil {
		t.Fatalf("CreateChannelStrip: %v", err)
	}
	if strip.ID != 0 || strip.Plugins.CrossFader != nil {
		t.Fatalf("unexpected strip: %+v", strip)
	}

	stage, err := h.client.CreateOutputStage(ipc.CreateOutputStageRequest{Name: "Main"})
	if err != nil {
		t.Fatalf("CreateOutputStage: %v", err)
	}
	if stage.LeftChannelStripID != 1 || stage.RightChannelStripID != 2 {
		t.Fatalf("unexpected stage legs: %+v", stage)
	}

	strips, err := h.client.ChannelStrips()
	if err != nil {
		t.Fatalf("ChannelStrips: %v", err)
	}
	if len(strips) != 3 {
		t.Fatalf("expected 3 strips (one direct, two legs), got %d", len(strips))
	}
	stages, err := h.client.OutputStages()
	if err != nil || len(stages) != 1 {
		t.Fatalf("expected 1 stage, got %d (%v)", len(stages), err)
	}

	entries, err := h.client.AssemblyList([]string{"completed"})
	if err != nil {
		t.Fatalf("AssemblyList: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 completed assemblies, got %d", len(entries))
	}
	var stripEntry int64
	for _, entry := range entries {
		if entry.RequestID == "cli-1" {
			stripEntry = entry.ID
		}
	}
	if stripEntry == 0 {
		t.Fatalf("request id not journaled: %+v", entries)
	}
	described, err := h.client.AssemblyDescribe(stripEntry)
	if err != nil {
		t.Fatalf("AssemblyDescribe: %v", err)
	}
	if described.Name != "Keys" || described.ResultID == nil || *described.ResultID != 0 {
		t.Fatalf("unexpected entry: %+v", described)
	}

	if _, err := h.client.AssemblyDescribe(999); err == nil {
		t.Fatal("expected error for unknown assembly")
	}
	if _, err := h.client.AssemblyList([]string{"bogus"}); err == nil {
		t.Fatal("expected error for unknown status filter")
	}
}

func TestIPCReportsAssemblyFailure(t *testing.T) {
	h := newHarness(t)
	h.backends.Registry.FailStrips(errors.New("registry offline"))

	_, err := h.client.CreateChannelStrip(ipc.CreateChannelStripRequest{Name: "Pad"})
	var remote *ipc.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Step != "registration" || remote.Role != "" {
		t.Fatalf("unexpected failure detail: %+v", remote.ErrorResponse)
	}

	_, err = h.client.CreateOutputStage(ipc.CreateOutputStageRequest{Name: " "})
	if !errors.As(err, &remote) || remote.Kind != "validation" {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestIPCLogTail(t *testing.T) {
	h := newHarness(t)
	if err := os.WriteFile(h.logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	resp, err := h.client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail: %v", err)
	}
	if len(resp.Lines) != 2 || resp.Lines[0] != "second" || resp.Lines[1] != "third" {
		t.Fatalf("unexpected lines: %#v", resp.Lines)
	}

	resp, err = h.client.LogTail(ipc.LogTailRequest{Offset: resp.Offset, Follow: true, WaitMillis: 300})
	if err != nil {
		t.Fatalf("LogTail follow: %v", err)
	}
	if len(resp.Lines) != 0 {
		t.Fatalf("expected no new lines, got %#v", resp.Lines)
	}
}

func TestIPCShutdown(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.Shutdown()
	if err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !resp.Stopped {
		t.Fatal("expected Stopped=true")
	}
	select {
	case <-h.shutdown:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown hook not called")
	}

	status, err := h.client.Status(false)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to report stopped")
	}
}
