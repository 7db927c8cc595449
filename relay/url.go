package relay

import "strings"

// Normalize canonicalizes a relay URL: lowercases scheme and host, strips a
// leading "www.", drops the default port for the scheme, and collapses the
// path to exactly one trailing slash.
func Normalize(u string) string {
	u = strings.TrimSpace(u)
	schemeIdx := strings.Index(u, "://")
	if schemeIdx < 0 {
		u = "wss://" + u
		schemeIdx = 3
	}
	scheme := strings.ToLower(u[:schemeIdx])
	rest := u[schemeIdx+3:]

	path := "/"
	if i := strings.Index(rest, "/"); i >= 0 {
		path = rest[i:]
		rest = rest[:i]
	}
	host := strings.ToLower(rest)
	host = strings.TrimPrefix(host, "www.")

	if i := strings.LastIndex(host, ":"); i >= 0 {
		port := host[i+1:]
		defaultPort := map[string]string{"ws": "80", "wss": "443"}[scheme]
		if port == defaultPort {
			host = host[:i]
		}
	}
	if path == "" {
		path = "/"
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	for strings.HasSuffix(path, "//") {
		path = path[:len(path)-1]
	}
	return scheme + "://" + host + path
}
