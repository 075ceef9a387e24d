package tool

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildSocketURL appends the bearer token to the socket endpoint as a query parameter,
// using "&" when the endpoint already carries a query string.
func BuildSocketURL(endpoint, token string) string {
	if token == "" {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "token=" + EscapeComponent(token)
}

// EscapeComponent percent-encodes s the way a URI component is encoded (spaces as %20).
func EscapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// BuildAPIURL joins the REST base with an endpoint path.
func BuildAPIURL(base, path string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("api base is not configured")
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + path)
	if err != nil {
		return "", fmt.Errorf("failed to parse api URL: %w", err)
	}
	return u.String(), nil
}

// BuildSessionURL builds /transfer/sessions/<id>[/suffix].
func BuildSessionURL(base, sessionId, suffix string) (string, error) {
	return BuildAPIURL(base, "/transfer/sessions/"+url.PathEscape(sessionId)+suffix)
}

// SocketHost extracts the hostname of a ws/wss endpoint, used for reachability probes.
func SocketHost(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse endpoint: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return u.Hostname(), nil
}
