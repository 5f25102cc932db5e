package utils

import (
	"net/http/httptest"
	"testing"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded for wins", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1", "X-Real-IP": "5.6.7.8"}, "1.2.3.4, 10.0.0.1"},
		{"real ip fallback", map[string]string{"X-Real-IP": "5.6.7.8"}, "5.6.7.8"},
		{"no headers", nil, "unknown"},
		{"blank forwarded for", map[string]string{"X-Forwarded-For": "  "}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := GetClientIP(req); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetUserAgent(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if got := GetUserAgent(req); got != "unknown" {
		t.Errorf("GetUserAgent() = %q, want unknown", got)
	}

	req.Header.Set("User-Agent", "curl/8.0")
	if got := GetUserAgent(req); got != "curl/8.0" {
		t.Errorf("GetUserAgent() = %q, want curl/8.0", got)
	}
}

func TestGetRemoteIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.10:54321"
	if got := GetRemoteIP(req); got != "192.0.2.10" {
		t.Errorf("GetRemoteIP() = %q, want 192.0.2.10", got)
	}

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	if got := GetRemoteIP(req); got != "1.2.3.4" {
		t.Errorf("GetRemoteIP() = %q, want 1.2.3.4", got)
	}
}

func TestExtractIP(t *testing.T) {
	tests := map[string]string{
		"1.2.3.4:8080": "1.2.3.4",
		"1.2.3.4":      "1.2.3.4",
		"[::1]:8080":   "::1",
		"[::1]":        "::1",
		"2001:db8::1":  "2001:db8::1",
		"":             "",
	}

	for input, want := range tests {
		if got := ExtractIP(input); got != want {
			t.Errorf("ExtractIP(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestIsTrustedProxyIP(t *testing.T) {
	tests := []struct {
		ip      string
		trusted string
		want    bool
	}{
		{"127.0.0.1", "127.0.0.1,::1", true},
		{"::1", "127.0.0.1,::1", true},
		{"10.1.2.3", "10.0.0.0/8", true},
		{"192.168.1.50", "127.0.0.1, 192.168.1.0/24", true},
		{"198.51.100.7", "127.0.0.1,10.0.0.0/8", false},
		{"198.51.100.7", "", false},
		{"not-an-ip", "0.0.0.0/0", false},
		{"10.0.0.1", "bogus/cidr", false},
	}

	for _, tt := range tests {
		if got := IsTrustedProxyIP(tt.ip, tt.trusted); got != tt.want {
			t.Errorf("IsTrustedProxyIP(%q, %q) = %v, want %v", tt.ip, tt.trusted, got, tt.want)
		}
	}
}

func TestGetClientIPWithTrust(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		mode       string
		headers    map[string]string
		want       string
	}{
		{
			name:       "auto ignores spoofed header from untrusted peer",
			remoteAddr: "198.51.100.7:4000",
			mode:       TrustProxyAuto,
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.99"},
			want:       "198.51.100.7",
		},
		{
			name:       "auto believes trusted proxy",
			remoteAddr: "127.0.0.1:4000",
			mode:       TrustProxyAuto,
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.99, 10.0.0.1"},
			want:       "203.0.113.99",
		},
		{
			name:       "auto falls back to real ip",
			remoteAddr: "127.0.0.1:4000",
			mode:       TrustProxyAuto,
			headers:    map[string]string{"X-Real-IP": "203.0.113.5"},
			want:       "203.0.113.5",
		},
		{
			name:       "trusted proxy without headers",
			remoteAddr: "127.0.0.1:4000",
			mode:       TrustProxyAuto,
			want:       "127.0.0.1",
		},
		{
			name:       "never trusts headers",
			remoteAddr: "127.0.0.1:4000",
			mode:       TrustProxyNever,
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.99"},
			want:       "127.0.0.1",
		},
		{
			name:       "always trusts headers",
			remoteAddr: "198.51.100.7:4000",
			mode:       TrustProxyAlways,
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.99"},
			want:       "203.0.113.99",
		},
		{
			name:       "unknown mode acts like auto",
			remoteAddr: "198.51.100.7:4000",
			mode:       "sometimes",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.99"},
			want:       "198.51.100.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/auth/login", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := GetClientIPWithTrust(req, tt.mode, "127.0.0.1,::1"); got != tt.want {
				t.Errorf("GetClientIPWithTrust() = %q, want %q", got, tt.want)
			}
		})
	}
}
