package intercept

import (
	"net/http"
	"net/url"
	"regexp"
)

var progressPath = regexp.MustCompile(`/videos/(\d+)/progress/?$`)

// Match extracts the target id from a progress-reporting URL.
func Match(rawURL string) (string, bool) {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	return matchPath(path)
}

// MatchRequest is Match for an outgoing request.
func MatchRequest(req *http.Request) (string, bool) {
	if req == nil || req.URL == nil {
		return "", false
	}
	return matchPath(req.URL.Path)
}

func matchPath(path string) (string, bool) {
	m := progressPath.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return m[1], true
}
