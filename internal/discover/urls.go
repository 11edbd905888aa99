package discover

import (
	"net/url"
	"strings"

	"scout/internal/normalize"
)

// CanonicalURL reduces a URL to its stored form: https assumed when the
// scheme is missing, host lowercased with the www prefix dropped, fragment
// removed, and the trailing slash stripped everywhere except the root.
// Returns "" for input that does not parse.
func CanonicalURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}

	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		u = "https://" + u
	}

	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return ""
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	parsed.Fragment = ""

	if parsed.Path == "" {
		parsed.Path = "/"
	}
	if parsed.Path != "/" && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String()
}

// sameDomain reports whether rawURL's host is domain or a subdomain of it.
func sameDomain(rawURL, domain string) bool {
	d := normalize.Domain(domain)
	if d == "" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	return host == d || strings.HasSuffix(host, "."+d)
}
