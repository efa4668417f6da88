package fleetsim_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/fleetapi"
	"github.com/muurk/fleetsync/internal/fleetsim"
	"github.com/muurk/fleetsync/internal/reconcile"
	"github.com/muurk/fleetsync/internal/session"
)

const target codec.ID = "653421142357639201"

func setup(t *testing.T, lag time.Duration) (*fleetsim.Server, *reconcile.Engine) {
	t.Helper()
	sim, err := fleetsim.New(&fleetsim.Config{Secret: "test-secret", Seed: 3, Lag: lag})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(sim.Handler())
	t.Cleanup(ts.Close)

	client := fleetapi.NewClient(ts.URL, session.New(session.NewMemoryStore()))
	if _, err := client.Login(context.Background(), fleetsim.DefaultUser.Email, fleetsim.DefaultUser.Password); err != nil {
		t.Fatal(err)
	}

	engine := reconcile.NewEngine(client, reconcile.Options{
		InitialDelay:   20 * time.Millisecond,
		DelayIncrement: 200 * time.Millisecond,
		MaxAttempts:    3,
	})
	t.Cleanup(engine.Close)

	if _, err := engine.Refresh(context.Background(), fleetapi.ListParams{Page: 1, PageSize: 10}); err != nil {
		t.Fatal(err)
	}
	return sim, engine
}

func finish(t *testing.T, sub *reconcile.Subscription) reconcile.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := sub.Wait(ctx)
	if err != nil {
		t.Fatalf("cycle did not finish: %v", err)
	}
	return final
}

func TestEngineConvergesAgainstLaggingBackend(t *testing.T) {
	_, engine := setup(t, 100*time.Millisecond)

	sub, err := engine.RequestStatusChange(target, fleetapi.StatusAbnormal)
	if err != nil {
		t.Fatal(err)
	}

	final := finish(t, sub)
	if final.Type != reconcile.EventConverged {
		t.Fatalf("final = %v (%v), want converged", final.Type, final.Err)
	}
	// the 20ms read misses the 100ms lag; the 240ms read sees the write
	if final.Attempt != 2 {
		t.Errorf("Attempt = %d, want 2", final.Attempt)
	}
	if final.Device == nil || final.Device.ID != target {
		t.Errorf("Device = %+v", final.Device)
	}
}

func TestEngineWarnsWhenWriteNeverShows(t *testing.T) {
	sim, engine := setup(t, 0)
	sim.Store.SetHidden(true)

	sub, err := engine.RequestStatusChange(target, fleetapi.StatusAbnormal)
	if err != nil {
		t.Fatal(err)
	}

	final := finish(t, sub)
	if final.Type != reconcile.EventWarning {
		t.Fatalf("final = %v, want warning", final.Type)
	}
	dev, _ := engine.Device(target)
	if dev.Status != fleetapi.StatusAbnormal || !engine.Unconfirmed(target) {
		t.Errorf("device = %+v, unconfirmed = %v", dev, engine.Unconfirmed(target))
	}
}

func TestEngineRollsBackRejectedWrite(t *testing.T) {
	sim, engine := setup(t, 0)
	sim.Store.FailNextUpdate(http.StatusUnprocessableEntity, "dev_status locked")

	before, _ := engine.Device(target)
	sub, err := engine.RequestStatusChange(target, fleetapi.StatusAbnormal)
	if err != nil {
		t.Fatal(err)
	}

	final := finish(t, sub)
	if final.Type != reconcile.EventRolledBack {
		t.Fatalf("final = %v, want rolled_back", final.Type)
	}
	if final.Err.Kind != reconcile.KindValidation {
		t.Errorf("Kind = %v, want validation", final.Err.Kind)
	}
	after, _ := engine.Device(target)
	if after.Status != before.Status {
		t.Errorf("status = %v, want %v restored", after.Status, before.Status)
	}
}
