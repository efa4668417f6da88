package fleetsim

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/muurk/fleetsync/internal/fleetapi"
	"github.com/muurk/fleetsync/internal/session"
)

func newTestSim(t *testing.T, lag time.Duration) (*Server, *httptest.Server) {
	t.Helper()
	sim, err := New(&Config{Secret: "test-secret", Seed: 4, Lag: lag})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(sim.Handler())
	t.Cleanup(ts.Close)
	return sim, ts
}

func loggedInClient(t *testing.T, url string) *fleetapi.Client {
	t.Helper()
	client := fleetapi.NewClient(url, session.New(session.NewMemoryStore()))
	if _, err := client.Login(context.Background(), DefaultUser.Email, DefaultUser.Password); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return client
}

func TestHandlersRequireBearer(t *testing.T) {
	_, ts := newTestSim(t, 0)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Token abc"},
		{"bad token", "Bearer abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/devices", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
			if !strings.Contains(string(body), `"code":401`) {
				t.Errorf("body = %s, want envelope code 401", body)
			}
		})
	}
}

func TestHealthIsPublic(t *testing.T) {
	_, ts := newTestSim(t, 0)
	client := fleetapi.NewClient(ts.URL, nil)
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestLoginFailureIsNotAuthError(t *testing.T) {
	_, ts := newTestSim(t, 0)
	client := fleetapi.NewClient(ts.URL, session.New(session.NewMemoryStore()))

	_, err := client.Login(context.Background(), DefaultUser.Email, "wrong")
	if !fleetapi.IsValidationError(err) {
		t.Errorf("Login() error = %v, want validation error", err)
	}
}

func TestListWireFormatUsesBareIdentifiers(t *testing.T) {
	sim, ts := newTestSim(t, 0)
	token, err := sim.Auth.Login(DefaultUser.Email, DefaultUser.Password)
	if err != nil {
		t.Fatal(err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/devices?page=1&page_size=2", nil)
	req.Header.Set("Authorization", "Bearer "+token.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`"code":200`,
		`"dev_id":653421142357639201`,
		`"pagination":{"page":1,"page_size":2,"total":4,"total_pages":2}`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("body missing %s:\n%s", want, body)
		}
	}
}

func TestUpdateRoundTripThroughClient(t *testing.T) {
	_, ts := newTestSim(t, 0)
	client := loggedInClient(t, ts.URL)
	ctx := context.Background()

	dev, err := client.GetDevice(ctx, "653421142357639202")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}

	echoed, err := client.UpdateDevice(ctx, fleetapi.UpdateFrom(*dev, fleetapi.StatusAbnormal))
	if err != nil {
		t.Fatalf("UpdateDevice() error = %v", err)
	}
	if echoed.ID != "653421142357639202" || echoed.Status != fleetapi.StatusAbnormal {
		t.Errorf("echoed = %+v", echoed)
	}

	again, err := client.GetDevice(ctx, "653421142357639202")
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != fleetapi.StatusAbnormal {
		t.Errorf("status = %v, want abnormal", again.Status)
	}
}

func TestUpdateValidation(t *testing.T) {
	sim, ts := newTestSim(t, 0)
	token, _ := sim.Auth.Login(DefaultUser.Email, DefaultUser.Password)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantMsg  string
	}{
		{"bad status", `{"dev_id":653421142357639201,"dev_name":"x","dev_type":"ecg","dev_status":7,"model":"m","version":"1","sampling_rate":1,"upload_interval":1}`, 400, "dev_status must be"},
		{"missing name", `{"dev_id":653421142357639201,"dev_type":"ecg","dev_status":1,"model":"m","version":"1","sampling_rate":1,"upload_interval":1}`, 400, "dev_name is required"},
		{"missing status", `{"dev_id":653421142357639201}`, 400, "dev_status is required"},
		{"quoted id", `{"dev_id":"653421142357639201","dev_name":"x","dev_type":"ecg","dev_status":1,"model":"m","version":"1","sampling_rate":1,"upload_interval":1}`, 400, "dev_id must be a number"},
		{"missing id", `{"dev_name":"x","dev_type":"ecg","dev_status":1,"model":"m","version":"1","sampling_rate":1,"upload_interval":1}`, 400, "dev_id is required"},
		{"unknown device", `{"dev_id":1,"dev_name":"x","dev_type":"ecg","dev_status":1,"model":"m","version":"1","sampling_rate":1,"upload_interval":1}`, 404, "device not found"},
		{"not json", `{`, 400, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/devices", strings.NewReader(tt.body))
			req.Header.Set("Authorization", "Bearer "+token.Token)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != tt.wantCode {
				t.Errorf("status = %d, want %d (%s)", resp.StatusCode, tt.wantCode, body)
			}
			if !strings.Contains(string(body), tt.wantMsg) {
				t.Errorf("body = %s, want message containing %q", body, tt.wantMsg)
			}
		})
	}
}

func TestCreateDeviceAssignsNextID(t *testing.T) {
	_, ts := newTestSim(t, 0)
	client := loggedInClient(t, ts.URL)

	dev, err := client.CreateDevice(context.Background(), fleetapi.DeviceCreate{
		Name: "ward-9-ecg", Type: "ecg", Status: fleetapi.StatusOnline, Power: 90,
		Model: "E-100", Version: "1.2.0", SamplingRate: 250, UploadInterval: 60,
	})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if dev.ID != "653421142357639205" {
		t.Errorf("ID = %s, want 653421142357639205", dev.ID)
	}
}

func TestInjectedFailureReachesClient(t *testing.T) {
	sim, ts := newTestSim(t, 0)
	client := loggedInClient(t, ts.URL)
	ctx := context.Background()

	dev, err := client.GetDevice(ctx, "653421142357639201")
	if err != nil {
		t.Fatal(err)
	}

	sim.Store.FailNextUpdate(http.StatusServiceUnavailable, "maintenance")
	_, err = client.UpdateDevice(ctx, fleetapi.UpdateFrom(*dev, fleetapi.StatusOnline))
	if !fleetapi.IsHTTPError(err) || !fleetapi.IsRetryable(err) {
		t.Errorf("UpdateDevice() error = %v, want retryable HTTP error", err)
	}
}

func TestExpiredTokenClearsClientSession(t *testing.T) {
	sim, ts := newTestSim(t, 0)

	sess := session.New(session.NewMemoryStore())
	user := DefaultUser
	result, _ := sim.Auth.Login(user.Email, user.Password)
	expired, err := sim.Auth.IssueToken(result.User, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Save(expired, `{"uid":912345678901234567}`); err != nil {
		t.Fatal(err)
	}

	client := fleetapi.NewClient(ts.URL, sess)
	called := false
	client.OnAuthFailure = func(*fleetapi.APIError) { called = true }

	_, err = client.ListDevices(context.Background(), fleetapi.ListParams{})
	if !fleetapi.IsAuthError(err) {
		t.Errorf("error = %v, want auth error", err)
	}
	if sess.Token() != "" || !called {
		t.Errorf("token = %q, boundary called = %v", sess.Token(), called)
	}
}
