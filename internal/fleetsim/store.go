package fleetsim

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/fleetapi"
)

// FirstDeviceID is where generated identifiers start. It is well past 2^53.
const FirstDeviceID uint64 = 653421142357639201

const timeLayout = "2006-01-02 15:04:05"

// ErrDeviceNotFound is returned for writes to an unknown dev_id.
var ErrDeviceNotFound = errors.New("device not found")

// StatusError is an injected failure with the HTTP status and envelope code
// the handler should answer with.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

type record struct {
	current   fleetapi.Device
	staged    *fleetapi.Device
	visibleAt time.Time
}

// Store is an in-memory device table whose reads trail its writes.
//
// An accepted update is echoed back immediately but list reads keep
// returning the old record until Lag has passed. With Hidden set, updates
// never become visible.
type Store struct {
	mu       sync.Mutex
	lag      time.Duration
	hidden   bool
	nextID   uint64
	order    []codec.ID
	records  map[codec.ID]*record
	failures []*StatusError
	now      func() time.Time
}

// NewStore creates an empty store with the given visibility lag.
func NewStore(lag time.Duration) *Store {
	return &Store{
		lag:     lag,
		nextID:  FirstDeviceID,
		records: make(map[codec.ID]*record),
		now:     time.Now,
	}
}

// SetLag changes how long later updates stay invisible.
func (s *Store) SetLag(lag time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lag = lag
}

// SetHidden makes later updates never visible to reads, or restores lag
// based visibility.
func (s *Store) SetHidden(hidden bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden = hidden
}

// FailNextUpdate queues a failure for the next update. Failures are used in
// the order they were queued.
func (s *Store) FailNextUpdate(code int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, &StatusError{Code: code, Message: message})
}

// settle promotes a staged write once it is due.
func (s *Store) settle(rec *record) {
	if rec.staged == nil || s.hidden {
		return
	}
	if !s.now().Before(rec.visibleAt) {
		rec.current = *rec.staged
		rec.staged = nil
	}
}

// Seed adds n demo devices and returns them.
func (s *Store) Seed(n int) []fleetapi.Device {
	types := []string{"ecg", "infusion", "spo2", "ventilator"}
	out := make([]fleetapi.Device, 0, n)
	for i := 0; i < n; i++ {
		dev, _ := s.Create(fleetapi.DeviceCreate{
			Name:           fmt.Sprintf("ward-%d-%s", i/len(types)+1, types[i%len(types)]),
			Type:           types[i%len(types)],
			Status:         fleetapi.Statuses[i%len(fleetapi.Statuses)],
			Power:          100 - (i*7)%60,
			Model:          fmt.Sprintf("M-%d00", i%len(types)+1),
			Version:        "1.2.0",
			SamplingRate:   250,
			UploadInterval: 60,
		})
		out = append(out, dev)
	}
	return out
}

// Create adds a device with the next identifier. It is visible at once.
func (s *Store) Create(c fleetapi.DeviceCreate) (fleetapi.Device, error) {
	if err := fleetapi.JoinValidationErrors(fleetapi.ValidateDeviceCreate(&c)); err != nil {
		return fleetapi.Device{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := codec.IDFromUint64(s.nextID)
	s.nextID++
	stamp := s.now().Format(timeLayout)

	dev := fleetapi.Device{
		ID:             id,
		Name:           c.Name,
		Type:           c.Type,
		Status:         c.Status,
		Power:          c.Power,
		Model:          c.Model,
		Version:        c.Version,
		SamplingRate:   c.SamplingRate,
		UploadInterval: c.UploadInterval,
		CreateAt:       stamp,
		UpdateAt:       stamp,
	}
	s.records[id] = &record{current: dev}
	s.order = append(s.order, id)
	return dev, nil
}

// Update replaces a device's editable fields and returns the new record.
// Power is not editable.
func (s *Store) Update(u fleetapi.DeviceUpdate) (fleetapi.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.failures) > 0 {
		failure := s.failures[0]
		s.failures = s.failures[1:]
		return fleetapi.Device{}, failure
	}

	rec, ok := s.records[u.ID]
	if !ok {
		return fleetapi.Device{}, ErrDeviceNotFound
	}
	s.settle(rec)

	base := rec.current
	if rec.staged != nil {
		base = *rec.staged
	}
	dev := base
	dev.Name = u.Name
	dev.Type = u.Type
	dev.Status = u.Status
	dev.Model = u.Model
	dev.Version = u.Version
	dev.SamplingRate = u.SamplingRate
	dev.UploadInterval = u.UploadInterval
	dev.UpdateAt = s.now().Format(timeLayout)

	if s.lag <= 0 && !s.hidden {
		rec.current = dev
		rec.staged = nil
	} else {
		rec.staged = &dev
		rec.visibleAt = s.now().Add(s.lag)
	}
	return dev, nil
}

// Get returns the visible record for id.
func (s *Store) Get(id codec.ID) (fleetapi.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return fleetapi.Device{}, false
	}
	s.settle(rec)
	return rec.current, true
}

// List filters and pages the visible records.
func (s *Store) List(params fleetapi.ListParams) fleetapi.DevicePage {
	s.mu.Lock()
	defer s.mu.Unlock()

	keyword := strings.ToLower(strings.TrimSpace(params.Keyword))
	matched := make([]fleetapi.Device, 0, len(s.order))
	for _, id := range s.order {
		if !params.DevID.IsZero() && id != params.DevID {
			continue
		}
		rec := s.records[id]
		s.settle(rec)
		dev := rec.current
		if params.Status != nil && dev.Status != *params.Status {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(dev.Name), keyword) {
			continue
		}
		matched = append(matched, dev)
	}

	page, size := params.Page, params.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	total := len(matched)
	totalPages := (total + size - 1) / size

	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	return fleetapi.DevicePage{
		Items: matched[start:end],
		Pagination: fleetapi.Pagination{
			Page:       page,
			PageSize:   size,
			Total:      total,
			TotalPages: totalPages,
		},
	}
}

// statusFor maps a store error onto an HTTP status and message.
func statusFor(err error) (int, string) {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return se.Code, se.Message
	case errors.Is(err, ErrDeviceNotFound):
		return http.StatusNotFound, err.Error()
	case fleetapi.IsValidationError(err):
		return http.StatusBadRequest, fleetapi.GetShortErrorMessage(err)
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
