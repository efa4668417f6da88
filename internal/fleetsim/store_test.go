package fleetsim

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/fleetapi"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedStore(lag time.Duration) (*Store, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(lag)
	s.now = clock.now
	return s, clock
}

func TestSeedAssignsLargeSequentialIDs(t *testing.T) {
	s := NewStore(0)
	devices := s.Seed(3)

	want := []codec.ID{"653421142357639201", "653421142357639202", "653421142357639203"}
	for i, d := range devices {
		if d.ID != want[i] {
			t.Errorf("device %d ID = %s, want %s", i, d.ID, want[i])
		}
	}
	if devices[0].Status != fleetapi.StatusOffline || devices[1].Status != fleetapi.StatusOnline {
		t.Errorf("statuses = %v, %v", devices[0].Status, devices[1].Status)
	}
}

func TestUpdateVisibleAfterLag(t *testing.T) {
	s, clock := newClockedStore(2 * time.Second)
	dev := s.Seed(1)[0]

	echoed, err := s.Update(fleetapi.UpdateFrom(dev, fleetapi.StatusAbnormal))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if echoed.Status != fleetapi.StatusAbnormal {
		t.Errorf("echoed status = %v, want abnormal", echoed.Status)
	}

	got, _ := s.Get(dev.ID)
	if got.Status != dev.Status {
		t.Errorf("status before lag = %v, want %v", got.Status, dev.Status)
	}

	clock.advance(time.Second)
	if got, _ := s.Get(dev.ID); got.Status != dev.Status {
		t.Errorf("status at 1s = %v, want still %v", got.Status, dev.Status)
	}

	clock.advance(time.Second)
	if got, _ := s.Get(dev.ID); got.Status != fleetapi.StatusAbnormal {
		t.Errorf("status at 2s = %v, want abnormal", got.Status)
	}
}

func TestUpdateWithoutLagIsImmediate(t *testing.T) {
	s := NewStore(0)
	dev := s.Seed(1)[0]

	if _, err := s.Update(fleetapi.UpdateFrom(dev, fleetapi.StatusAbnormal)); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Get(dev.ID); got.Status != fleetapi.StatusAbnormal {
		t.Errorf("status = %v, want abnormal", got.Status)
	}
}

func TestHiddenUpdatesNeverAppear(t *testing.T) {
	s, clock := newClockedStore(0)
	dev := s.Seed(1)[0]
	s.SetHidden(true)

	if _, err := s.Update(fleetapi.UpdateFrom(dev, fleetapi.StatusAbnormal)); err != nil {
		t.Fatal(err)
	}
	clock.advance(time.Hour)
	if got, _ := s.Get(dev.ID); got.Status != dev.Status {
		t.Errorf("status = %v, hidden update leaked", got.Status)
	}

	s.SetHidden(false)
	if got, _ := s.Get(dev.ID); got.Status != fleetapi.StatusAbnormal {
		t.Errorf("status after unhide = %v, want abnormal", got.Status)
	}
}

func TestUpdatePreservesPower(t *testing.T) {
	s := NewStore(0)
	dev := s.Seed(1)[0]

	u := fleetapi.UpdateFrom(dev, fleetapi.StatusOnline)
	u.Name = "renamed"
	got, err := s.Update(u)
	if err != nil {
		t.Fatal(err)
	}
	if got.Power != dev.Power || got.Name != "renamed" {
		t.Errorf("updated = %+v", got)
	}
}

func TestFailNextUpdate(t *testing.T) {
	s := NewStore(0)
	dev := s.Seed(1)[0]
	s.FailNextUpdate(http.StatusInternalServerError, "db down")

	_, err := s.Update(fleetapi.UpdateFrom(dev, fleetapi.StatusAbnormal))
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 500 {
		t.Fatalf("error = %v, want injected 500", err)
	}
	if got, _ := s.Get(dev.ID); got.Status != dev.Status {
		t.Error("failed update changed the record")
	}

	if _, err := s.Update(fleetapi.UpdateFrom(dev, fleetapi.StatusAbnormal)); err != nil {
		t.Errorf("second update error = %v, failure should be used once", err)
	}
}

func TestUpdateUnknownDevice(t *testing.T) {
	s := NewStore(0)
	_, err := s.Update(fleetapi.DeviceUpdate{ID: "1"})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("error = %v, want ErrDeviceNotFound", err)
	}
	if status, _ := statusFor(err); status != http.StatusNotFound {
		t.Errorf("statusFor() = %d, want 404", status)
	}
}

func TestListFiltersAndPages(t *testing.T) {
	s := NewStore(0)
	s.Seed(10)

	online := fleetapi.StatusOnline
	tests := []struct {
		name      string
		params    fleetapi.ListParams
		wantItems int
		wantTotal int
		wantPages int
		wantFirst codec.ID
	}{
		{"defaults", fleetapi.ListParams{}, 10, 10, 1, "653421142357639201"},
		{"second page", fleetapi.ListParams{Page: 2, PageSize: 4}, 4, 10, 3, "653421142357639205"},
		{"past the end", fleetapi.ListParams{Page: 5, PageSize: 4}, 0, 10, 3, ""},
		{"status", fleetapi.ListParams{Status: &online}, 3, 3, 1, "653421142357639202"},
		{"keyword", fleetapi.ListParams{Keyword: "SPO2"}, 2, 2, 1, "653421142357639203"},
		{"dev_id", fleetapi.ListParams{DevID: "653421142357639207"}, 1, 1, 1, "653421142357639207"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := s.List(tt.params)
			if len(page.Items) != tt.wantItems {
				t.Errorf("items = %d, want %d", len(page.Items), tt.wantItems)
			}
			if page.Pagination.Total != tt.wantTotal || page.Pagination.TotalPages != tt.wantPages {
				t.Errorf("pagination = %+v", page.Pagination)
			}
			if tt.wantFirst != "" && (len(page.Items) == 0 || page.Items[0].ID != tt.wantFirst) {
				t.Errorf("first = %+v, want %s", page.Items, tt.wantFirst)
			}
		})
	}
}
