package fleetapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/session"
)

const bigID = "653421142357639201"

const listResponse = `{"code":200,"message":"ok","data":{"items":[` +
	`{"dev_id":653421142357639201,"dev_name":"ward-3-ecg","dev_type":"ecg","dev_status":1,"dev_power":87,` +
	`"model":"E-100","version":"1.2.0","sampling_rate":250,"upload_interval":60}` +
	`],"pagination":{"page":1,"page_size":20,"total":1,"total_pages":1}}}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *session.Session) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	sess := session.New(session.NewMemoryStore())
	return NewClient(server.URL, sess), sess
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://fleet.local:8080/", nil)

	if client.BaseURL != "http://fleet.local:8080" {
		t.Errorf("BaseURL = %s, want trailing slash trimmed", client.BaseURL)
	}
	if client.HTTPClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", client.HTTPClient.Timeout, DefaultTimeout)
	}

	client.SetTimeout(5 * time.Second)
	if client.HTTPClient.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.HTTPClient.Timeout)
	}
}

func TestListDevicesPreservesIdentifiers(t *testing.T) {
	var gotQuery, gotAuth string
	client, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(listResponse))
	})
	if err := sess.Save("tok", ""); err != nil {
		t.Fatal(err)
	}

	online := StatusOnline
	page, err := client.ListDevices(context.Background(), ListParams{Page: 1, PageSize: 20, Status: &online})
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}

	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q, want Bearer tok", gotAuth)
	}
	if gotQuery != "dev_status=1&page=1&page_size=20" {
		t.Errorf("query = %q", gotQuery)
	}
	if len(page.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(page.Items))
	}
	if page.Items[0].ID != bigID {
		t.Errorf("dev_id = %s, want %s", page.Items[0].ID, bigID)
	}
	if page.Items[0].Status != StatusOnline {
		t.Errorf("status = %v, want online", page.Items[0].Status)
	}
	if page.Pagination.Total != 1 {
		t.Errorf("total = %d, want 1", page.Pagination.Total)
	}
}

func TestUpdateDeviceSendsNativeIdentifier(t *testing.T) {
	var body []byte
	var method string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"code":200,"message":"ok","data":{"dev_id":653421142357639201,"dev_status":2}}`))
	})

	update := DeviceUpdate{
		ID: bigID, Name: "ward-3-ecg", Type: "ecg", Status: StatusAbnormal,
		Model: "E-100", Version: "1.2.0", SamplingRate: 250, UploadInterval: 60,
	}
	echoed, err := client.UpdateDevice(context.Background(), update)
	if err != nil {
		t.Fatalf("UpdateDevice() error = %v", err)
	}

	if method != http.MethodPut {
		t.Errorf("method = %s, want PUT", method)
	}
	if !strings.Contains(string(body), `"dev_id":653421142357639201`) {
		t.Errorf("body = %s, want bare dev_id", body)
	}
	for _, field := range []string{"dev_name", "dev_type", "model", "version", "sampling_rate", "upload_interval"} {
		if !strings.Contains(string(body), `"`+field+`"`) {
			t.Errorf("body missing %s: %s", field, body)
		}
	}
	if echoed == nil || echoed.ID != bigID || echoed.Status != StatusAbnormal {
		t.Errorf("echoed = %+v", echoed)
	}
}

func TestUnauthorizedClearsSession(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http status", http.StatusUnauthorized, `{"code":401,"message":"token expired"}`},
		{"envelope code", http.StatusOK, `{"code":401,"message":"token expired"}`},
		{"non-json body", http.StatusUnauthorized, `Unauthorized`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			if err := sess.Save("tok", `{"uid":1}`); err != nil {
				t.Fatal(err)
			}

			var boundary *APIError
			client.OnAuthFailure = func(err *APIError) { boundary = err }

			_, err := client.ListDevices(context.Background(), ListParams{})
			if !IsAuthError(err) {
				t.Fatalf("error = %v, want auth error", err)
			}
			if sess.Token() != "" {
				t.Error("token not cleared")
			}
			if _, ok := sess.User(); ok {
				t.Error("user not cleared")
			}
			if boundary == nil {
				t.Error("OnAuthFailure not called")
			}
		})
	}
}

func TestErrorNormalization(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType ErrorType
		wantMsg  string
	}{
		{"validation 400", http.StatusBadRequest, `{"code":400,"message":"dev_name is required"}`, ErrTypeValidation, "dev_name is required"},
		{"validation 422", http.StatusUnprocessableEntity, `{"code":422,"message":"bad status"}`, ErrTypeValidation, "bad status"},
		{"server error", http.StatusInternalServerError, `{"code":500,"message":"db down"}`, ErrTypeHTTP, "db down"},
		{"html error page", http.StatusBadGateway, `<html>bad gateway</html>`, ErrTypeHTTP, "Bad Gateway"},
		{"envelope failure on 200", http.StatusOK, `{"code":400,"message":"invalid dev_id"}`, ErrTypeValidation, "invalid dev_id"},
		{"garbage on 200", http.StatusOK, `not json`, ErrTypeParse, "response is not a JSON envelope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			res := client.Do(context.Background(), http.MethodGet, "/api/v1/devices", nil, nil)
			if res.OK {
				t.Fatal("expected failure")
			}
			if res.Err.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", res.Err.Type, tt.wantType)
			}
			if res.Err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", res.Err.Message, tt.wantMsg)
			}
			if string(res.Err.Body) != tt.body {
				t.Errorf("Body = %q, want raw body", res.Err.Body)
			}
		})
	}
}

func TestNetworkErrorIsClassified(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(url, session.New(session.NewMemoryStore()))
	_, err := client.ListDevices(context.Background(), ListParams{})
	if !IsNetworkError(err) {
		t.Errorf("error = %v, want network error", err)
	}
	if !IsRetryable(err) {
		t.Error("network errors should be retryable")
	}
}

func TestLoginStoresSession(t *testing.T) {
	var creds Credentials
	client, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/users/login" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&creds)
		_, _ = w.Write([]byte(`{"code":200,"message":"ok","data":{"token":"jwt-abc","user":{"uid":912345678901234567,"username":"ops","email":"ops@example.com"}}}`))
	})

	login, err := client.Login(context.Background(), "ops@example.com", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if creds.Email != "ops@example.com" || creds.Password != "secret" {
		t.Errorf("credentials sent = %+v", creds)
	}
	if login.User.UID != "912345678901234567" {
		t.Errorf("UID = %s", login.User.UID)
	}
	if sess.Token() != "jwt-abc" {
		t.Errorf("stored token = %q", sess.Token())
	}
	user, _ := sess.User()
	if !strings.Contains(user, `"uid":912345678901234567`) {
		t.Errorf("stored user = %s", user)
	}

	if err := client.Logout(); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if sess.Token() != "" {
		t.Error("token survived Logout()")
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	client := NewClient("http://unused", nil)
	if _, err := client.Login(context.Background(), "", ""); !IsValidationError(err) {
		t.Errorf("Login() error = %v, want validation error", err)
	}
}

func TestGetDeviceFiltersByID(t *testing.T) {
	var gotID string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotID = r.URL.Query().Get("dev_id")
		_, _ = w.Write([]byte(listResponse))
	})

	dev, err := client.GetDevice(context.Background(), bigID)
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if gotID != bigID {
		t.Errorf("dev_id filter = %q, want %s", gotID, bigID)
	}
	if dev.Name != "ward-3-ecg" {
		t.Errorf("Name = %s", dev.Name)
	}

	if _, err := client.GetDevice(context.Background(), codec.ID("1")); !IsHTTPError(err) {
		t.Errorf("GetDevice(missing) error = %v, want HTTP 404 error", err)
	}
}

func TestPing(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v, want nil for a 404", err)
	}

	failing, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if err := failing.Ping(context.Background()); err == nil {
		t.Error("Ping() expected error for 503")
	}
}
