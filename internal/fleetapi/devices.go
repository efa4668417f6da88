package fleetapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/urls"
)

// Query encodes the non-zero filters.
func (p ListParams) Query() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set(urls.ParamPage, strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set(urls.ParamPageSize, strconv.Itoa(p.PageSize))
	}
	if p.Keyword != "" {
		q.Set(urls.ParamKeyword, p.Keyword)
	}
	if p.Status != nil {
		q.Set(urls.ParamStatus, strconv.Itoa(int(*p.Status)))
	}
	if !p.DevID.IsZero() {
		q.Set(urls.ParamDevID, p.DevID.String())
	}
	return q
}

// ListDevices fetches one page of the device list.
func (c *Client) ListDevices(ctx context.Context, params ListParams) (*DevicePage, error) {
	res := c.Do(ctx, http.MethodGet, urls.Devices, params.Query(), nil)
	if !res.OK {
		return nil, res.Error()
	}

	var page DevicePage
	if err := res.DecodeData(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetDevice returns the backend's current view of one device. The API has
// no single-record endpoint, so this filters the list by dev_id.
func (c *Client) GetDevice(ctx context.Context, id codec.ID) (*Device, error) {
	page, err := c.ListDevices(ctx, ListParams{Page: 1, PageSize: 10, DevID: id})
	if err != nil {
		return nil, err
	}
	for i := range page.Items {
		if page.Items[i].ID == id {
			return &page.Items[i], nil
		}
	}
	apiErr := NewHTTPError(http.StatusNotFound, fmt.Sprintf("device %s not found", id))
	return nil, apiErr
}

// UpdateDevice replaces a device record. The returned device is what the
// backend echoed, which may not yet be visible to list reads.
func (c *Client) UpdateDevice(ctx context.Context, update DeviceUpdate) (*Device, error) {
	if err := ValidateStatus(update.Status); err != nil {
		return nil, err
	}
	if !update.ID.Valid() {
		return nil, NewValidationError(fmt.Sprintf("invalid dev_id %q", update.ID))
	}

	res := c.Do(ctx, http.MethodPut, urls.Devices, nil, update)
	if !res.OK {
		return nil, res.Error()
	}

	var echoed Device
	if res.Envelope != nil && len(res.Envelope.Data) > 0 && string(res.Envelope.Data) != "null" {
		if err := res.DecodeData(&echoed); err != nil {
			return nil, err
		}
		return &echoed, nil
	}
	return nil, nil
}

// CreateDevice registers a new device and returns it with its identifier.
func (c *Client) CreateDevice(ctx context.Context, create DeviceCreate) (*Device, error) {
	if err := JoinValidationErrors(ValidateDeviceCreate(&create)); err != nil {
		return nil, err
	}

	res := c.Do(ctx, http.MethodPost, urls.Devices, nil, create)
	if !res.OK {
		return nil, res.Error()
	}

	var created Device
	if err := res.DecodeData(&created); err != nil {
		return nil, err
	}
	return &created, nil
}
