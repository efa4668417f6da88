package fleetapi

import (
	"fmt"
	"strings"
)

// Field limits shared by the client and the simulator.
const (
	MaxNameLength       = 64
	MaxSamplingRate     = 100000
	MaxUploadInterval   = 86400
	MinUploadInterval   = 1
	MinSamplingRate     = 1
	maxVersionLength    = 32
	maxModelLength      = 64
	maxDeviceTypeLength = 32
)

// ValidateStatus rejects values outside the three known states.
func ValidateStatus(s Status) error {
	if !s.Valid() {
		return NewValidationError(fmt.Sprintf("dev_status must be 0, 1 or 2, got %d", int(s)))
	}
	return nil
}

func validateText(field, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError(fmt.Sprintf("%s is required", field))
	}
	if len(value) > max {
		return NewValidationError(fmt.Sprintf("%s too long (max %d chars): %d chars", field, max, len(value)))
	}
	return nil
}

func validateRange(field string, value, min, max int) error {
	if value < min || value > max {
		return NewValidationError(fmt.Sprintf("%s must be %d-%d, got %d", field, min, max, value))
	}
	return nil
}

// ValidateDeviceUpdate checks a full update record.
// Returns a slice of validation errors (empty if valid).
func ValidateDeviceUpdate(u *DeviceUpdate) []error {
	var errs []error

	if !u.ID.Valid() {
		errs = append(errs, NewValidationError(fmt.Sprintf("dev_id must be a decimal integer, got %q", u.ID)))
	}
	if err := validateText("dev_name", u.Name, MaxNameLength); err != nil {
		errs = append(errs, err)
	}
	if err := validateText("dev_type", u.Type, maxDeviceTypeLength); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateStatus(u.Status); err != nil {
		errs = append(errs, err)
	}
	if err := validateText("model", u.Model, maxModelLength); err != nil {
		errs = append(errs, err)
	}
	if err := validateText("version", u.Version, maxVersionLength); err != nil {
		errs = append(errs, err)
	}
	if err := validateRange("sampling_rate", u.SamplingRate, MinSamplingRate, MaxSamplingRate); err != nil {
		errs = append(errs, err)
	}
	if err := validateRange("upload_interval", u.UploadInterval, MinUploadInterval, MaxUploadInterval); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// ValidateDeviceCreate checks a create request.
func ValidateDeviceCreate(c *DeviceCreate) []error {
	u := DeviceUpdate{
		ID:             "0",
		Name:           c.Name,
		Type:           c.Type,
		Status:         c.Status,
		Model:          c.Model,
		Version:        c.Version,
		SamplingRate:   c.SamplingRate,
		UploadInterval: c.UploadInterval,
	}
	errs := ValidateDeviceUpdate(&u)
	if err := validateRange("dev_power", c.Power, 0, 100); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// JoinValidationErrors collapses errs into one validation error, or nil.
func JoinValidationErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		if apiErr, ok := asAPIError(err); ok {
			msgs[i] = apiErr.Message
		} else {
			msgs[i] = err.Error()
		}
	}
	return NewValidationError(strings.Join(msgs, "; "))
}
