// Package fleetapi is the HTTP client for the fleet management REST API.
//
// Every call is one request and one response. The client attaches the
// session's bearer token, encodes request bodies with the codec package so
// identifiers go out as native integers, and decodes responses so they come
// back as exact strings. It never retries.
//
// # Responses
//
// The backend wraps everything in an envelope:
//
//	{"code": 200, "message": "ok", "data": {...}}
//
// Do returns a Result that is either OK with the envelope or carries an
// *APIError. A non-2xx status or a code other than 200/201 is a failure.
//
// # Authentication failures
//
// A 401 (as HTTP status or envelope code) clears the token and user from the
// session and calls OnAuthFailure, which the console wires to its login
// view.
//
// # Usage Example
//
//	sess := session.New(session.NewFileStore(path))
//	client := fleetapi.NewClient("http://fleet.local:8080", sess)
//
//	if _, err := client.Login(ctx, "ops@example.com", "secret"); err != nil {
//	    log.Fatal(fleetapi.GetShortErrorMessage(err))
//	}
//
//	page, err := client.ListDevices(ctx, fleetapi.ListParams{Page: 1, PageSize: 20})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	dev := page.Items[0]
//	_, err = client.UpdateDevice(ctx, fleetapi.UpdateFrom(dev, fleetapi.StatusOnline))
//
// # Error Handling
//
// Errors are *APIError values classified by ErrorType. Use the Is* helpers
// and GetTroubleshootingHint for display:
//
//	if fleetapi.IsValidationError(err) {
//	    // the backend rejected the record; nothing was changed
//	}
package fleetapi
