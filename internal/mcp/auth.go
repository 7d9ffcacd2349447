package mcp

import (
	"net/http"
	"strings"
)

// resolveRequestAuthorizationHeader resolves the Authorization header value
// for an MCP HTTP request, falling back to the apikey query parameter.
//
// Returns the header value and where it came from: "header", "query_apikey" or "none".
func resolveRequestAuthorizationHeader(r *http.Request) (authHeader string, source string) {
	if r == nil {
		return "", "none"
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header != "" {
		return header, "header"
	}

	if apiKey := extractAPIKeyFromQuery(r); apiKey != "" {
		return "Bearer " + apiKey, "query_apikey"
	}

	return "", "none"
}

func extractAPIKeyFromQuery(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}

	query := r.URL.Query()
	for _, key := range []string{"APIKEY", "apikey", "api_key"} {
		if v := extractAPIKey(query.Get(key)); v != "" {
			return v
		}
	}

	return ""
}

func extractAPIKey(authHeader string) string {
	value := strings.TrimSpace(authHeader)
	if value == "" {
		return ""
	}

	const prefix = "Bearer "
	if len(value) >= len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
		return strings.TrimSpace(value[len(prefix):])
	}

	return value
}
