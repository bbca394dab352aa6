package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"arcam/internal/api"
	"arcam/internal/capture"
	"arcam/internal/config"
	"arcam/internal/daemon"
	"arcam/internal/devices"
	"arcam/internal/logging"
	"arcam/internal/prefstore"
	"arcam/internal/session"
	"arcam/internal/testsupport"
)

type testEnv struct {
	cfg    *config.Config
	prefs  *prefstore.MemoryStore
	daemon *daemon.Daemon
	server *httptest.Server
}

func newTestEnv(t *testing.T, catalog devices.Catalog, cfgOpts []testsupport.ConfigOption, mgrOpts ...session.Option) *testEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, cfgOpts...)
	prefs := prefstore.NewMemoryStore()
	mgr := session.NewManager(cfg, prefs, nil, logging.NewNop(), mgrOpts...)
	d, err := daemon.New(daemon.Deps{
		Config:      cfg,
		Preferences: prefs,
		Sessions:    mgr,
		Catalog:     catalog,
		Hub:         logging.NewStreamHub(16),
		Logger:      logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(func() {
		srv.Close()
		mgr.CloseAll()
	})
	return &testEnv{cfg: cfg, prefs: prefs, daemon: d, server: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if e.cfg.Paths.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.Paths.APIToken)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) openSession(t *testing.T) string {
	t.Helper()
	var resp api.SessionResponse
	if code := e.do(t, http.MethodPost, "/api/sessions", nil, &resp); code != http.StatusCreated {
		t.Fatalf("open session: status %d", code)
	}
	return resp.Session.ID
}

// servePage polls the command endpoint and answers like the AR page.
func (e *testEnv) servePage(ctx context.Context, id string, listing []devices.CaptureDevice) {
	go func() {
		for ctx.Err() == nil {
			var cmds api.CommandsResponse
			req, _ := http.NewRequestWithContext(ctx, http.MethodGet, e.server.URL+"/api/sessions/"+id+"/commands?wait=100", nil)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				return
			}
			_ = json.NewDecoder(resp.Body).Decode(&cmds)
			resp.Body.Close()

			for _, cmd := range cmds.Commands {
				var result any = struct{}{}
				switch cmd.Op {
				case "enumerate":
					result = listing
				case "capture":
					var c capture.Constraints
					_ = json.Unmarshal(cmd.Payload, &c)
					result = map[string]any{
						"track_id": "track-1",
						"found":    true,
						"live":     true,
						"settings": map[string]any{"deviceId": c.DeviceID, "width": 640, "height": 480},
					}
				}
				raw, _ := json.Marshal(result)
				body, _ := json.Marshal(map[string]any{"result": json.RawMessage(raw)})
				post, _ := http.NewRequestWithContext(ctx, http.MethodPost,
					e.server.URL+"/api/sessions/"+id+"/commands/"+cmd.ID+"/result", bytes.NewReader(body))
				if resp, err := http.DefaultClient.Do(post); err == nil {
					resp.Body.Close()
				}
			}
		}
	}()
}

func TestDaemonStartStop(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := env.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if env.daemon.Address() == "" {
		t.Fatal("expected bound API address")
	}
	if !env.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to report running")
	}

	// Second start should fail
	if err := env.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other, err := daemon.New(daemon.Deps{
		Config:      env.cfg,
		Preferences: prefstore.NewMemoryStore(),
		Sessions:    session.NewManager(env.cfg, prefstore.NewMemoryStore(), nil, logging.NewNop()),
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := other.Start(ctx); err == nil {
		other.Stop()
		t.Fatal("expected lock to block a second instance")
	}

	env.daemon.Stop()
	if env.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestNegotiateThroughPageBridge(t *testing.T) {
	env := newTestEnv(t, nil, []testsupport.ConfigOption{testsupport.WithBridgeTimeout(2 * time.Second)})
	id := env.openSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.servePage(ctx, id, []devices.CaptureDevice{
		{ID: "front", Label: "Front Camera", Kind: devices.KindVideo},
		{ID: "tele", Label: "Back Telephoto Camera", Kind: devices.KindVideo},
		{ID: "main", Label: "Back Main Camera", Kind: devices.KindVideo},
	})

	var out api.NegotiateResponse
	if code := env.do(t, http.MethodPost, "/api/sessions/"+id+"/negotiate", nil, &out); code != http.StatusOK {
		t.Fatalf("negotiate: status %d", code)
	}
	if !out.OK || out.DeviceID != "main" || out.Strategy != "enhanced-scoring" {
		t.Fatalf("unexpected negotiation %+v", out)
	}

	var debug api.DebugResponse
	env.do(t, http.MethodGet, "/api/sessions/"+id+"/debug", nil, &debug)
	if debug.Text == "" {
		t.Fatal("expected debug line after negotiation")
	}

	var sess api.SessionResponse
	env.do(t, http.MethodGet, "/api/sessions/"+id, nil, &sess)
	if sess.Session.Device != "main" || !sess.Session.Connected {
		t.Fatalf("unexpected session %+v", sess.Session)
	}
}

func TestNegotiateFailureRaisesRetry(t *testing.T) {
	env := newTestEnv(t, nil, nil, session.WithLocalPlatform(deniedPlatform{}))
	id := env.openSession(t)

	var out api.NegotiateResponse
	env.do(t, http.MethodPost, "/api/sessions/"+id+"/negotiate", nil, &out)
	if out.OK || out.ErrorKind != "permission-denied" || !out.ShowRetry {
		t.Fatalf("unexpected failure response %+v", out)
	}

	var hint api.HintResponse
	env.do(t, http.MethodGet, "/api/sessions/"+id+"/hint", nil, &hint)
	if !hint.Retry.Required || hint.Retry.Kind != "permission-denied" {
		t.Fatalf("expected retry remediation, got %+v", hint.Retry)
	}

	if code := env.do(t, http.MethodGet, "/api/sessions/"+id+"/commands", nil, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 polling a local session, got %d", code)
	}
}

func TestNegotiateBudgetReleasesLateGrant(t *testing.T) {
	env := newTestEnv(t, nil, []testsupport.ConfigOption{
		testsupport.WithNegotiateTimeout(300 * time.Millisecond),
		testsupport.WithBridgeTimeout(5 * time.Second),
	})
	id := env.openSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	captured := make(chan string, 1)
	go func() {
		for ctx.Err() == nil {
			var cmds api.CommandsResponse
			req, _ := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/api/sessions/"+id+"/commands?wait=100", nil)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			_ = json.NewDecoder(resp.Body).Decode(&cmds)
			resp.Body.Close()
			for _, cmd := range cmds.Commands {
				switch cmd.Op {
				case "enumerate":
					body, _ := json.Marshal(map[string]any{"result": []devices.CaptureDevice{{ID: "main", Label: "Back Main Camera", Kind: devices.KindVideo}}})
					post, _ := http.NewRequestWithContext(ctx, http.MethodPost,
						env.server.URL+"/api/sessions/"+id+"/commands/"+cmd.ID+"/result", bytes.NewReader(body))
					if resp, err := http.DefaultClient.Do(post); err == nil {
						resp.Body.Close()
					}
				case "capture":
					// The permission prompt is still open.
					captured <- cmd.ID
					return
				}
			}
		}
	}()

	start := time.Now()
	var out api.NegotiateResponse
	if code := env.do(t, http.MethodPost, "/api/sessions/"+id+"/negotiate", nil, &out); code != http.StatusOK {
		t.Fatalf("negotiate: status %d", code)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("negotiation outlived its budget: %s", elapsed)
	}
	if out.OK || !out.ShowRetry {
		t.Fatalf("expected retry remediation, got %+v", out)
	}

	var captureID string
	select {
	case captureID = <-captured:
	case <-time.After(2 * time.Second):
		t.Fatal("page never saw the capture command")
	}
	late := map[string]any{"result": map[string]any{"track_id": "track-late", "live": true}}
	if code := env.do(t, http.MethodPost, "/api/sessions/"+id+"/commands/"+captureID+"/result", late, nil); code != http.StatusNoContent {
		t.Fatalf("late grant: status %d", code)
	}

	var cmds api.CommandsResponse
	if code := env.do(t, http.MethodGet, "/api/sessions/"+id+"/commands?wait=1000", nil, &cmds); code != http.StatusOK {
		t.Fatalf("commands: status %d", code)
	}
	if len(cmds.Commands) != 1 || cmds.Commands[0].Op != "stop" {
		t.Fatalf("expected stop for the late track, got %+v", cmds.Commands)
	}
	var ref struct {
		TrackID string `json:"track_id"`
	}
	if err := json.Unmarshal(cmds.Commands[0].Payload, &ref); err != nil || ref.TrackID != "track-late" {
		t.Fatalf("unexpected stop payload %s", cmds.Commands[0].Payload)
	}
}

func TestPollEndsWithGoneWhenSessionCloses(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	id := env.openSession(t)

	codes := make(chan int, 1)
	go func() {
		resp, err := http.Get(env.server.URL + "/api/sessions/" + id + "/commands?wait=5000")
		if err != nil {
			codes <- 0
			return
		}
		resp.Body.Close()
		codes <- resp.StatusCode
	}()
	// Let the poll reach the bridge.
	time.Sleep(50 * time.Millisecond)
	if code := env.do(t, http.MethodDelete, "/api/sessions/"+id, nil, nil); code != http.StatusNoContent {
		t.Fatalf("close: status %d", code)
	}
	select {
	case code := <-codes:
		if code != http.StatusGone {
			t.Fatalf("expected 410 for an in-flight poll, got %d", code)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("poll did not end on close")
	}
	if code := env.do(t, http.MethodGet, "/api/sessions/"+id+"/commands", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for a closed session, got %d", code)
	}
}

type deniedPlatform struct{}

func (deniedPlatform) Enumerate(context.Context) ([]devices.CaptureDevice, error) {
	return []devices.CaptureDevice{{ID: "cam", Label: "Back Camera", Kind: devices.KindVideo}}, nil
}

func (deniedPlatform) RequestCapture(context.Context, capture.Constraints) (*capture.Session, error) {
	return nil, &capture.PlatformError{Name: "NotAllowedError", Message: "Permission denied"}
}

func TestEventsAndLayout(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	id := env.openSession(t)

	if code := env.do(t, http.MethodPost, "/api/sessions/"+id+"/events", api.EventRequest{Type: "marker-found", Detail: "clue-1"}, nil); code != http.StatusAccepted {
		t.Fatalf("marker event: status %d", code)
	}
	if code := env.do(t, http.MethodPost, "/api/sessions/"+id+"/events", api.EventRequest{Type: "layout-corrected"}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected daemon-only event rejected, got %d", code)
	}
	if code := env.do(t, http.MethodPost, "/api/sessions/missing/events", api.EventRequest{Type: "ar-ready"}, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", code)
	}

	var layout api.LayoutResponse
	sample := map[string]any{
		"viewport": map[string]any{"w": 390, "h": 844},
		"canvas":   map[string]any{"x": 0, "y": 120, "w": 390, "h": 600},
	}
	env.do(t, http.MethodPost, "/api/sessions/"+id+"/layout", sample, &layout)
	if !layout.NeedsCorrection || layout.Directive == nil {
		t.Fatalf("expected correction for offset canvas, got %+v", layout)
	}
	if c := layout.Expected; c == nil || c.Canvas == nil || c.Canvas.Y != 0 || c.Canvas.H != 844 {
		t.Fatalf("expected full-viewport canvas after correction, got %+v", layout.Expected)
	}

	good := map[string]any{
		"viewport": map[string]any{"w": 390, "h": 844},
		"canvas":   map[string]any{"w": 390, "h": 844},
	}
	layout = api.LayoutResponse{}
	env.do(t, http.MethodPost, "/api/sessions/"+id+"/layout", good, &layout)
	if layout.NeedsCorrection {
		t.Fatalf("expected full-bleed canvas accepted, got %+v", layout)
	}

	if code := env.do(t, http.MethodDelete, "/api/sessions/"+id, nil, nil); code != http.StatusNoContent {
		t.Fatalf("close session: status %d", code)
	}
	if code := env.do(t, http.MethodGet, "/api/sessions/"+id, nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected closed session gone, got %d", code)
	}
}

func TestPreferenceEndpoints(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	var pref api.PreferenceResponse
	env.do(t, http.MethodGet, "/api/preference", nil, &pref)
	if pref.Set {
		t.Fatalf("expected no preference, got %+v", pref)
	}
	if code := env.do(t, http.MethodPut, "/api/preference", api.PreferenceRequest{DeviceID: " "}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected blank id rejected, got %d", code)
	}
	env.do(t, http.MethodPut, "/api/preference", api.PreferenceRequest{DeviceID: "cam-wide"}, &pref)
	if stored, ok, _ := env.prefs.Get(context.Background()); !ok || stored != "cam-wide" {
		t.Fatalf("expected stored preference, got %q %v", stored, ok)
	}
	if code := env.do(t, http.MethodDelete, "/api/preference", nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete preference: status %d", code)
	}
	if _, ok, _ := env.prefs.Get(context.Background()); ok {
		t.Fatal("expected preference cleared")
	}
}

func TestDevicesEndpointScoresCatalog(t *testing.T) {
	catalog := devices.NewStaticCatalog([]devices.CaptureDevice{
		{ID: "/dev/video0", Label: "Integrated Camera: Integrated C", Kind: devices.KindVideo},
		{ID: "/dev/video2", Label: "USB Telephoto Zoom", Kind: devices.KindVideo},
	})
	env := newTestEnv(t, catalog, nil)

	var resp api.DevicesResponse
	if code := env.do(t, http.MethodGet, "/api/devices", nil, &resp); code != http.StatusOK {
		t.Fatalf("devices: status %d", code)
	}
	if len(resp.Devices) != 2 || resp.Winner != "/dev/video0" {
		t.Fatalf("unexpected devices %+v", resp)
	}
}

func TestAuthTokenRequired(t *testing.T) {
	env := newTestEnv(t, nil, []testsupport.ConfigOption{testsupport.WithAPIToken("s3cret")})

	resp, err := http.Get(env.server.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	var list api.SessionListResponse
	if code := env.do(t, http.MethodGet, "/api/sessions", nil, &list); code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", code)
	}
}

func TestStatusReportsSessionsAndChecks(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.openSession(t)
	if err := env.prefs.Set(context.Background(), "cam-wide"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var status api.DaemonStatus
	if code := env.do(t, http.MethodGet, "/api/status", nil, &status); code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if len(status.Sessions) != 1 || status.PreferredCamera != "cam-wide" || len(status.Checks) == 0 {
		t.Fatalf("unexpected status %+v", status)
	}
}
