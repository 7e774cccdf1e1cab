package audit

import "testing"

func TestParseRoute(t *testing.T) {
	tests := []struct {
		method string
		route  string
		want   ActionResource
	}{
		{"POST", "/auth/login", ActionResource{Action: "login", Resource: "session"}},
		{"POST", "/auth/refresh", ActionResource{Action: "token_refreshed", Resource: "session"}},
		{"POST", "/auth/logout", ActionResource{Action: "logout", Resource: "session"}},
		{"POST", "/auth/magic-link", ActionResource{Action: "magic_link_requested", Resource: "magic_link"}},
		{"POST", "/auth/magic-link/exchange", ActionResource{Action: "magic_link_login", Resource: "session"}},
		{"GET", "/auth/magic-link/verify", ActionResource{Action: "magic_link_login", Resource: "session"}},
		{"DELETE", "/auth/sessions/:id", ActionResource{Action: "session_terminated", Resource: "session"}},
		{"GET", "/auth/sessions", ActionResource{Action: "get", Resource: "session"}},
		{"GET", "/auth/verify", ActionResource{Action: "get", Resource: "verify"}},
		{"PATCH", "/auth/password", ActionResource{Action: "update", Resource: "password"}},
		{"GET", "/healthz", ActionResource{Action: "get", Resource: "unknown"}},
		{"TRACE", "/auth/login", ActionResource{Action: "unknown", Resource: "login"}},
	}
	for _, tt := range tests {
		got := ParseRoute(tt.method, tt.route)
		if got != tt.want {
			t.Errorf("ParseRoute(%q, %q) = %+v, want %+v", tt.method, tt.route, got, tt.want)
		}
	}
}
