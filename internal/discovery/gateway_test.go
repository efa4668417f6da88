package discovery

import "testing"

func TestGateway_BaseURL(t *testing.T) {
	tests := []struct {
		name string
		gw   Gateway
		want string
	}{
		{"ipv4", Gateway{IP: "192.168.4.16", Port: 8080}, "http://192.168.4.16:8080"},
		{"ipv6", Gateway{IP: "fe80::1", Port: 80}, "http://[fe80::1]:80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.gw.BaseURL(); got != tt.want {
				t.Errorf("BaseURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGateway_String(t *testing.T) {
	gw := &Gateway{Instance: "ward-3", Hostname: "gw.local.", IP: "10.0.0.2", Port: 8080}
	want := `Fleet API "ward-3" (gw.local.) at 10.0.0.2:8080`
	if got := gw.String(); got != want {
		t.Errorf("String() = %v, want %v", got, want)
	}
}

func TestGateway_GetMetadata(t *testing.T) {
	var empty Gateway
	if got := empty.GetMetadata("path"); got != "" {
		t.Errorf("GetMetadata() on nil map = %q, want empty", got)
	}

	gw := Gateway{Metadata: map[string]string{"version": "1.4.2"}}
	if got := gw.GetMetadata("version"); got != "1.4.2" {
		t.Errorf("GetMetadata(version) = %q, want 1.4.2", got)
	}
	if gw.IsSimulator() {
		t.Error("IsSimulator() = true, want false")
	}
}
