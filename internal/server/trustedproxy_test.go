package server

import (
	"net"
	"net/http/httptest"
	"testing"
)

func TestTrustedProxies_IsTrusted(t *testing.T) {
	tp := NewTrustedProxies([]string{"127.0.0.0/8", "::1/128", "10.0.0.0/8"})

	tests := []struct {
		ip      string
		trusted bool
	}{
		{"127.0.0.1", true},
		{"10.255.255.255", true},
		{"192.168.1.1", false},
		{"8.8.8.8", false},
		{"::1", true},
		{"::2", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			if ip == nil {
				t.Fatalf("failed to parse IP: %s", tt.ip)
			}
			if got := tp.IsTrusted(ip); got != tt.trusted {
				t.Errorf("IsTrusted(%s) = %v, want %v", tt.ip, got, tt.trusted)
			}
		})
	}
}

func TestTrustedProxies_GetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		cidrs      []string
		remoteAddr string
		xff        string
		xRealIP    string
		want       string
	}{
		{
			name:       "no trusted proxies ignores forwarded header",
			cidrs:      nil,
			remoteAddr: "192.168.1.100:12345",
			xff:        "8.8.8.8",
			want:       "192.168.1.100",
		},
		{
			name:       "trusted proxy honors forwarded chain",
			cidrs:      []string{"127.0.0.0/8"},
			remoteAddr: "127.0.0.1:12345",
			xff:        "8.8.8.8, 10.0.0.1",
			want:       "8.8.8.8",
		},
		{
			name:       "trusted proxy honors x-real-ip",
			cidrs:      []string{"127.0.0.0/8"},
			remoteAddr: "127.0.0.1:12345",
			xRealIP:    "1.2.3.4",
			want:       "1.2.3.4",
		},
		{
			name:       "untrusted peer keeps direct address",
			cidrs:      []string{"127.0.0.0/8"},
			remoteAddr: "192.168.1.100:12345",
			xff:        "8.8.8.8",
			want:       "192.168.1.100",
		},
		{
			name:       "ipv6 proxy with ipv6 client",
			cidrs:      []string{"::1/128"},
			remoteAddr: "[::1]:12345",
			xff:        "2001:db8::1",
			want:       "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := NewTrustedProxies(tt.cidrs)
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}
			ip := tp.GetClientIP(req)
			if ip.String() != tt.want {
				t.Errorf("got %s, want %s", ip, tt.want)
			}
		})
	}
}

func TestParseRemoteAddr(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"192.168.1.1:8080", "192.168.1.1"},
		{"[::1]:8080", "::1"},
		{"192.168.1.1", "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			ip := parseRemoteAddr(tt.addr)
			if ip == nil {
				t.Fatalf("parseRemoteAddr returned nil for %s", tt.addr)
			}
			if ip.String() != tt.want {
				t.Errorf("got %s, want %s", ip, tt.want)
			}
		})
	}
}

func TestNewTrustedProxies_SingleIP(t *testing.T) {
	// Single IPs without a mask are treated as /32 or /128.
	tp := NewTrustedProxies([]string{"192.168.1.1"})

	if !tp.IsTrusted(net.ParseIP("192.168.1.1")) {
		t.Error("expected 192.168.1.1 to be trusted")
	}
	if tp.IsTrusted(net.ParseIP("192.168.1.2")) {
		t.Error("expected 192.168.1.2 to not be trusted")
	}
}
