package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/h2events/go-sdk/internal/testutil"
	"github.com/h2events/go-sdk/pkg/core"
	"github.com/h2events/go-sdk/pkg/core/events"
	"github.com/h2events/go-sdk/pkg/server"
	"github.com/h2events/go-sdk/pkg/settings"
	"github.com/h2events/go-sdk/pkg/transport"
	"golang.org/x/net/http2"
)

const conversation = `name: conversation
local_client: true
batches:
  - id: settings
    events:
      - type: REMOTE_SETTINGS_CHANGED
        settings: {MAX_CONCURRENT_STREAMS: 100}
  - id: response
    events:
      - type: RESPONSE_RECEIVED
        stream: 1
        headers: [{name: ":status", value: "200"}]
      - type: DATA_RECEIVED
        stream: 1
        data: "hello, world"
        padding: 4
        end_stream: true
  - id: goaway
    events:
      - type: CONNECTION_TERMINATED
        last_stream: 1
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// executeCommand runs a fresh command tree with an absent config file.
func executeCommand(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	root := NewRootCmd()
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}, args...))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, context.Background(), "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "h2events version "+h2eventsVersion) {
		t.Errorf("expected output to contain version, got: %s", out)
	}
}

func TestDiffCommand(t *testing.T) {
	out, err := executeCommand(t, context.Background(), "diff", "HEADER_TABLE_SIZE=8192", "MAX_CONCURRENT_STREAMS=100")
	if err != nil {
		t.Fatalf("diff command failed: %v", err)
	}
	for _, want := range []string{
		"ChangedSetting(setting=HEADER_TABLE_SIZE, original_value=4096, new_value=8192)",
		"ChangedSetting(setting=MAX_CONCURRENT_STREAMS, original_value=None, new_value=100)",
		"settings: HEADER_TABLE_SIZE=8192 ENABLE_PUSH=0 MAX_CONCURRENT_STREAMS=100 INITIAL_WINDOW_SIZE=65535 MAX_FRAME_SIZE=16384 ENABLE_CONNECT_PROTOCOL=0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestDiffCommandJSON(t *testing.T) {
	out, err := executeCommand(t, context.Background(), "diff", "--client", "-o", "json", "ENABLE_PUSH=0")
	if err != nil {
		t.Fatalf("diff command failed: %v", err)
	}

	var result struct {
		ChangedSettings settings.Changes  `json:"changed_settings"`
		Patch           []map[string]any  `json:"patch"`
		Settings        settings.Snapshot `json:"settings"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	change := result.ChangedSettings[http2.SettingEnablePush]
	if v, ok := change.Original(); !ok || v != 1 {
		t.Errorf("ENABLE_PUSH original = %d, %t; want 1, true", v, ok)
	}
	if len(result.Patch) != 1 || result.Patch[0]["op"] != "replace" {
		t.Errorf("patch = %v", result.Patch)
	}
	if v, _ := result.Settings.Get(http2.SettingEnablePush); v != 0 {
		t.Errorf("ENABLE_PUSH = %d, want 0", v)
	}
}

func TestDiffCommandErrors(t *testing.T) {
	for _, args := range [][]string{
		{"diff"},
		{"diff", "NOPE=1"},
		{"diff", "HEADER_TABLE_SIZE"},
		{"diff", "HEADER_TABLE_SIZE=big"},
		{"diff", "1=1", "HEADER_TABLE_SIZE=2"},
	} {
		if _, err := executeCommand(t, context.Background(), args...); err == nil {
			t.Errorf("%v: expected an error", args)
		}
	}
}

func TestReprCommand(t *testing.T) {
	path := writeFile(t, "conversation.yaml", conversation)

	out, err := executeCommand(t, context.Background(), "repr", path)
	if err != nil {
		t.Fatalf("repr command failed: %v", err)
	}
	for _, want := range []string{
		"<Batch id:settings, policy:flatten, events:1>",
		"<Batch id:response, policy:flatten, events:3>",
		"  <DataReceived stream_id:1, flow_controlled_length:16",
		"  <StreamEnded stream_id:1>",
		"<ConnectionTerminated error_code:NO_ERROR, last_stream_id:1, additional_data:None>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}

	out, err = executeCommand(t, context.Background(), "--nesting", "nested-only", "repr", path)
	if err != nil {
		t.Fatalf("repr command failed: %v", err)
	}
	if !strings.Contains(out, "<Batch id:response, policy:nested-only, events:2>") {
		t.Errorf("expected nested-only batch, got: %s", out)
	}
}

func TestReprCommandJSON(t *testing.T) {
	path := writeFile(t, "conversation.yaml", conversation)

	out, err := executeCommand(t, context.Background(), "-o", "json", "repr", path)
	if err != nil {
		t.Fatalf("repr command failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 envelopes, got %d: %s", len(lines), out)
	}
	batch, err := transport.DecodeBatch([]byte(lines[1]))
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if batch.ID() != "response" || batch.Len() != 3 {
		t.Errorf("decoded %v", batch)
	}
}

func TestReplayCommand(t *testing.T) {
	path := writeFile(t, "conversation.yaml", conversation)

	out, err := executeCommand(t, context.Background(), "replay", path)
	if err != nil {
		t.Fatalf("replay command failed: %v", err)
	}
	for _, want := range []string{
		"<Batch id:goaway, policy:flatten, events:1>",
		"batches: 3",
		"  DATA_RECEIVED: 1",
		"closed streams: 1",
		"terminated: NO_ERROR",
		"MAX_CONCURRENT_STREAMS=100",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestReplayCommandQuietJSON(t *testing.T) {
	path := writeFile(t, "conversation.yaml", conversation)

	out, err := executeCommand(t, context.Background(), "replay", "-q", "-o", "json", path)
	if err != nil {
		t.Fatalf("replay command failed: %v", err)
	}
	var info events.TrackerInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if info.TotalBatches != 3 || !info.Terminated {
		t.Errorf("summary = %+v", info)
	}
}

func TestReplayCommandStrict(t *testing.T) {
	path := writeFile(t, "late.yaml", `batches:
  - events:
      - type: DATA_RECEIVED
        stream: 1
        data: a
        end_stream: true
  - events:
      - type: DATA_RECEIVED
        stream: 1
        data: b
`)

	_, err := executeCommand(t, context.Background(), "replay", "--strict", path)
	if !errors.Is(err, core.ErrStreamClosed) {
		t.Errorf("replay --strict error = %v, want ErrStreamClosed", err)
	}

	if _, err := executeCommand(t, context.Background(), "replay", path); err != nil {
		t.Errorf("replay without --strict failed: %v", err)
	}
}

func TestConfigErrors(t *testing.T) {
	badConfig := writeFile(t, "config.yaml", "log_level: loud\n")
	root := NewRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"--config", badConfig, "version"})
	if err := root.Execute(); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("bad config error = %v, want ErrInvalidConfig", err)
	}

	if _, err := executeCommand(t, context.Background(), "--nesting", "sideways", "version"); err == nil {
		t.Error("expected an error for an invalid nesting flag")
	}
	if _, err := executeCommand(t, context.Background(), "-o", "yaml", "version"); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("bad output error = %v, want ErrInvalidConfig", err)
	}
}

func TestServeCommand(t *testing.T) {
	path := writeFile(t, "conversation.yaml", conversation)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	out, err := executeCommand(t, ctx, "serve", "--address", "127.0.0.1:0", "--grpc-address", "127.0.0.1:0", "--interval", "0", path)
	if err != nil {
		t.Fatalf("serve command failed: %v", err)
	}
	if !strings.Contains(out, "<Batch id:goaway, policy:flatten, events:1>") {
		t.Errorf("expected the published batches in the output, got: %s", out)
	}
}

func TestWatchCommand(t *testing.T) {
	logger, _ := testutil.NullLogger()
	inspector, err := server.New(server.Config{},
		server.WithLogger(logger),
		server.WithTracker(events.NewTracker(events.DefaultTrackerConfig())),
	)
	if err != nil {
		t.Fatalf("server.New() unexpected error: %v", err)
	}
	srv := httptest.NewServer(inspector.Handler())
	defer srv.Close()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := executeCommand(t, context.Background(), "watch", "--track", srv.URL)
		done <- result{out, err}
	}()

	deadline := time.Now().Add(time.Second)
	for inspector.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watch did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}

	batches := testutil.ConversationBatches(t, events.NestAndFlatten)
	for _, b := range batches {
		if err := inspector.HandleBatch(context.Background(), b); err != nil {
			t.Fatalf("HandleBatch() unexpected error: %v", err)
		}
	}
	if err := inspector.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() unexpected error: %v", err)
	}

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("watch command failed: %v", r.err)
		}
		if !strings.Contains(r.out, "batches: 4") {
			t.Errorf("expected the local summary, got: %s", r.out)
		}
		if !strings.Contains(r.out, "<WindowUpdated stream_id:0, delta:16>") {
			t.Errorf("expected the received events, got: %s", r.out)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after the inspector shut down")
	}
}

func TestWatchCommandInfo(t *testing.T) {
	tracker := events.NewTracker(events.DefaultTrackerConfig())
	inspector, err := server.New(server.Config{}, server.WithTracker(tracker))
	if err != nil {
		t.Fatalf("server.New() unexpected error: %v", err)
	}
	srv := httptest.NewServer(inspector.Handler())
	defer srv.Close()

	if err := inspector.HandleBatch(context.Background(), testutil.RequestBatch(t, 1, events.NestAndFlatten)); err != nil {
		t.Fatalf("HandleBatch() unexpected error: %v", err)
	}

	out, err := executeCommand(t, context.Background(), "watch", "--info", srv.URL)
	if err != nil {
		t.Fatalf("watch --info failed: %v", err)
	}
	if !strings.Contains(out, "  REQUEST_RECEIVED: 1") || !strings.Contains(out, "terminated: false") {
		t.Errorf("unexpected summary: %s", out)
	}
}

func TestWatchCommandGRPC(t *testing.T) {
	logger, _ := testutil.NullLogger()
	inspector, err := server.New(server.Config{}, server.WithLogger(logger))
	if err != nil {
		t.Fatalf("server.New() unexpected error: %v", err)
	}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	served := make(chan error, 1)
	go func() { served <- inspector.ServeGRPC(lis) }()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := executeCommand(t, context.Background(), "watch", "--track", "--grpc", lis.Addr().String())
		done <- result{out, err}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for inspector.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watch did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}

	for _, b := range testutil.ConversationBatches(t, events.NestAndFlatten) {
		if err := inspector.HandleBatch(context.Background(), b); err != nil {
			t.Fatalf("HandleBatch() unexpected error: %v", err)
		}
	}
	if err := inspector.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() unexpected error: %v", err)
	}
	if err := <-served; err != nil {
		t.Errorf("ServeGRPC() error = %v", err)
	}

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("watch command failed: %v", r.err)
		}
		if !strings.Contains(r.out, "batches: 4") || !strings.Contains(r.out, "terminated: NO_ERROR") {
			t.Errorf("expected the local summary, got: %s", r.out)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after the inspector shut down")
	}
}

func TestWatchCommandGRPCWithInfo(t *testing.T) {
	_, err := executeCommand(t, context.Background(), "watch", "--info", "--grpc", "127.0.0.1:1")
	if err == nil || !strings.Contains(err.Error(), "cannot be combined") {
		t.Errorf("watch --info --grpc error = %v", err)
	}
}
