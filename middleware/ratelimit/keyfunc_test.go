package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultKeyFunc(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		trustXFF bool
		setup    func(r *http.Request)
		want     string
	}{
		{
			name:   "prefers header when set",
			header: "X-User-Id",
			setup: func(r *http.Request) {
				r.RemoteAddr = "10.0.0.1:1234"
				r.Header.Set("X-User-Id", " patient-123 ")
			},
			want: "patient-123",
		},
		{
			name:   "empty header falls back to ip",
			header: "X-User-Id",
			setup:  func(r *http.Request) { r.RemoteAddr = "10.0.0.1:1234" },
			want:   "10.0.0.1",
		},
		{
			name:     "trusted xff uses first ip",
			trustXFF: true,
			setup: func(r *http.Request) {
				r.RemoteAddr = "10.0.0.9:5555"
				r.Header.Set("X-Forwarded-For", "203.0.113.5, 5.6.7.8")
			},
			want: "203.0.113.5",
		},
		{
			name: "untrusted xff is ignored",
			setup: func(r *http.Request) {
				r.RemoteAddr = "10.0.0.9:5555"
				r.Header.Set("X-Forwarded-For", "203.0.113.5")
			},
			want: "10.0.0.9",
		},
		{
			name:  "remote addr without port",
			setup: func(r *http.Request) { r.RemoteAddr = "10.0.0.9" },
			want:  "10.0.0.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
			tt.setup(r)
			assert.Equal(t, tt.want, DefaultKeyFunc(tt.header, tt.trustXFF)(r))
		})
	}
}
