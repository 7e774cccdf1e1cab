package audit

import "strings"

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// Auth route overrides: audited under domain verbs rather than raw HTTP verbs.
var routeOverrides = map[string]ActionResource{
	"POST /auth/login":               {Action: "login", Resource: "session"},
	"POST /auth/refresh":             {Action: "token_refreshed", Resource: "session"},
	"POST /auth/logout":              {Action: "logout", Resource: "session"},
	"POST /auth/magic-link":          {Action: "magic_link_requested", Resource: "magic_link"},
	"POST /auth/magic-link/exchange": {Action: "magic_link_login", Resource: "session"},
	"GET /auth/magic-link/verify":    {Action: "magic_link_login", Resource: "session"},
	"DELETE /auth/sessions/:id":      {Action: "session_terminated", Resource: "session"},
}

// ParseRoute returns action and resource for an HTTP method and route
// template (e.g. GET /auth/sessions). Known auth routes map to domain verbs;
// everything else derives action from the method and resource from the first
// path segment after /auth.
func ParseRoute(method, route string) ActionResource {
	if ar, ok := routeOverrides[method+" "+route]; ok {
		return ar
	}

	resource := "unknown"
	trimmed := strings.TrimPrefix(route, "/auth/")
	if trimmed != route && trimmed != "" {
		if i := strings.IndexByte(trimmed, '/'); i > 0 {
			trimmed = trimmed[:i]
		}
		resource = strings.TrimSuffix(strings.ReplaceAll(trimmed, "-", "_"), "s")
	}

	action := "unknown"
	switch method {
	case "GET":
		action = "get"
	case "POST":
		action = "create"
	case "PUT", "PATCH":
		action = "update"
	case "DELETE":
		action = "delete"
	}
	return ActionResource{Action: action, Resource: resource}
}
