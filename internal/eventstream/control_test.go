package eventstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/fleetapi"
	"github.com/muurk/fleetsync/internal/fleetsim"
	"github.com/muurk/fleetsync/internal/reconcile"
	"github.com/muurk/fleetsync/internal/session"
)

// newSimEngine returns an engine backed by a fresh simulator, already
// refreshed.
func newSimEngine(t *testing.T) *reconcile.Engine {
	t.Helper()
	sim, err := fleetsim.New(&fleetsim.Config{Secret: "test-secret", Seed: 3})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(sim.Handler())
	t.Cleanup(ts.Close)

	ctx := context.Background()
	client := fleetapi.NewClient(ts.URL, session.New(session.NewMemoryStore()))
	if _, err := client.Login(ctx, fleetsim.DefaultUser.Email, fleetsim.DefaultUser.Password); err != nil {
		t.Fatal(err)
	}
	engine := reconcile.NewEngine(client, reconcile.Options{
		InitialDelay:   time.Millisecond,
		DelayIncrement: time.Millisecond,
		MaxAttempts:    3,
	})
	t.Cleanup(engine.Close)
	if _, err := engine.Refresh(ctx, fleetapi.ListParams{Page: 1, PageSize: 10}); err != nil {
		t.Fatal(err)
	}
	return engine
}

func postStatus(t *testing.T, base, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(base+"/status", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestStatusRequestValidation(t *testing.T) {
	srv, err := New(&Config{}, newSimEngine(t))
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantBody string
	}{
		{"accepted", `{"dev_id":653421142357639201,"dev_status":2}`, http.StatusAccepted, `"dev_id":653421142357639201`},
		{"quoted id", `{"dev_id":"653421142357639202","dev_status":0}`, http.StatusAccepted, `"cycle_id":"`},
		{"not json", `{`, http.StatusBadRequest, "invalid request body"},
		{"missing status", `{"dev_id":653421142357639201}`, http.StatusBadRequest, "required"},
		{"bad status", `{"dev_id":653421142357639203,"dev_status":7}`, http.StatusBadRequest, `"kind":"validation"`},
		{"unknown device", `{"dev_id":1,"dev_status":1}`, http.StatusNotFound, `"kind":"not_found"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := postStatus(t, ts.URL, tt.body)
			if code != tt.wantCode {
				t.Errorf("status = %d, want %d (%s)", code, tt.wantCode, body)
			}
			if !strings.Contains(body, tt.wantBody) {
				t.Errorf("body = %s, want %s", body, tt.wantBody)
			}
		})
	}
}

func TestStatusRequestOutcomeIsStreamed(t *testing.T) {
	engine := newSimEngine(t)
	srv, err := New(&Config{}, engine)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/events")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()
	if msg, err := client.Next(); err != nil || msg.Type != TypeSnapshot {
		t.Fatalf("first message = %+v, %v", msg, err)
	}

	code, body := postStatus(t, ts.URL, `{"dev_id":653421142357639201,"dev_status":2}`)
	if code != http.StatusAccepted {
		t.Fatalf("POST = %d %s", code, body)
	}
	var accepted StatusAccepted
	if err := codec.Unmarshal([]byte(body), &accepted); err != nil {
		t.Fatal(err)
	}

	for {
		msg, err := client.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		ev, err := msg.Event()
		if err != nil {
			t.Fatal(err)
		}
		if ev.CycleID != accepted.CycleID {
			continue
		}
		if ev.Type.Terminal() {
			if ev.Type != reconcile.EventConverged {
				t.Errorf("final = %v, want converged", ev.Type)
			}
			return
		}
	}
}

func TestStatusRouteNeedsController(t *testing.T) {
	srv, err := New(&Config{}, newFakeSource())
	if err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/status", strings.NewReader(`{}`)))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for a read-only source", w.Code)
	}
}
