package util

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithSecurityHeaders(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("trusted proxies: %v", err)
	}
	h := WithSecurityHeaders(trusted, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name      string
		remote    string
		proto     string
		tls       bool
		authz     bool
		wantHSTS  bool
		wantStore bool
	}{
		{name: "plain http", remote: "198.51.100.1:1000"},
		{name: "direct tls", remote: "198.51.100.1:1000", tls: true, wantHSTS: true},
		{name: "https via trusted proxy", remote: "10.1.2.3:1000", proto: "HTTPS", wantHSTS: true},
		{name: "forwarded proto from untrusted peer", remote: "198.51.100.1:1000", proto: "https"},
		{name: "authenticated request", remote: "198.51.100.1:1000", authz: true, wantStore: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/favorites", nil)
			req.RemoteAddr = tc.remote
			if tc.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tc.proto)
			}
			if tc.tls {
				req.TLS = &tls.ConnectionState{}
			}
			if tc.authz {
				req.Header.Set("Authorization", "Bearer token")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
				t.Fatalf("nosniff header = %q", got)
			}
			if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
				t.Fatalf("frame options = %q", got)
			}
			if hsts := rec.Header().Get("Strict-Transport-Security") != ""; hsts != tc.wantHSTS {
				t.Fatalf("hsts present = %v, want %v", hsts, tc.wantHSTS)
			}
			if store := rec.Header().Get("Cache-Control") == "no-store"; store != tc.wantStore {
				t.Fatalf("no-store = %v, want %v", store, tc.wantStore)
			}
		})
	}
}
