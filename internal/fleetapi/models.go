package fleetapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/muurk/fleetsync/internal/codec"
)

// Status is a device's reported operating state.
type Status int

const (
	StatusOffline  Status = 0
	StatusOnline   Status = 1
	StatusAbnormal Status = 2
)

// Statuses lists every valid Status in wire order.
var Statuses = []Status{StatusOffline, StatusOnline, StatusAbnormal}

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	return s >= StatusOffline && s <= StatusAbnormal
}

func (s Status) String() string {
	switch s {
	case StatusOffline:
		return "offline"
	case StatusOnline:
		return "online"
	case StatusAbnormal:
		return "abnormal"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus accepts a name ("online") or a wire value ("1").
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "offline", "0":
		return StatusOffline, nil
	case "online", "1":
		return StatusOnline, nil
	case "abnormal", "2":
		return StatusAbnormal, nil
	default:
		return StatusOffline, fmt.Errorf("unknown status %q (want offline, online or abnormal)", s)
	}
}

// UnmarshalJSON reads a bare or quoted integer. Anything outside the known
// range, or unreadable, decodes as StatusOffline rather than failing the
// whole record.
func (s *Status) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	n, err := strconv.Atoi(string(data))
	if err != nil || !Status(n).Valid() {
		*s = StatusOffline
		return nil
	}
	*s = Status(n)
	return nil
}

// Envelope wraps every backend response.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Succeeded reports whether the envelope code marks success.
func (e *Envelope) Succeeded() bool {
	return e.Code == 200 || e.Code == 201
}

// Device is one record of the device list.
type Device struct {
	ID             codec.ID `json:"dev_id"`
	Name           string   `json:"dev_name"`
	Type           string   `json:"dev_type"`
	Status         Status   `json:"dev_status"`
	Power          int      `json:"dev_power"`
	Model          string   `json:"model"`
	Version        string   `json:"version"`
	SamplingRate   int      `json:"sampling_rate"`
	UploadInterval int      `json:"upload_interval"`
	CreateAt       string   `json:"create_at,omitempty"`
	UpdateAt       string   `json:"update_at,omitempty"`
}

// DeviceUpdate is the full record PUT /api/v1/devices expects. The backend
// treats it as a replacement, so every field must be present.
type DeviceUpdate struct {
	ID             codec.ID `json:"dev_id"`
	Name           string   `json:"dev_name"`
	Type           string   `json:"dev_type"`
	Status         Status   `json:"dev_status"`
	Model          string   `json:"model"`
	Version        string   `json:"version"`
	SamplingRate   int      `json:"sampling_rate"`
	UploadInterval int      `json:"upload_interval"`
}

// UpdateFrom builds the full update record for d with its status replaced.
func UpdateFrom(d Device, status Status) DeviceUpdate {
	return DeviceUpdate{
		ID:             d.ID,
		Name:           d.Name,
		Type:           d.Type,
		Status:         status,
		Model:          d.Model,
		Version:        d.Version,
		SamplingRate:   d.SamplingRate,
		UploadInterval: d.UploadInterval,
	}
}

// DeviceCreate is the body of POST /api/v1/devices.
type DeviceCreate struct {
	Name           string `json:"dev_name"`
	Type           string `json:"dev_type"`
	Status         Status `json:"dev_status"`
	Power          int    `json:"dev_power"`
	Model          string `json:"model"`
	Version        string `json:"version"`
	SamplingRate   int    `json:"sampling_rate"`
	UploadInterval int    `json:"upload_interval"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// DevicePage is the data of a device list response.
type DevicePage struct {
	Items      []Device   `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// ListParams filters the device list. Zero values are omitted.
type ListParams struct {
	Page     int
	PageSize int
	Keyword  string
	Status   *Status
	DevID    codec.ID
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the signed-in operator's profile.
type User struct {
	UID      codec.ID `json:"uid"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Role     string   `json:"role,omitempty"`
}

// LoginResult is the data of a login response.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
