package api

import (
	"net/url"
	"strings"
)

// URIFromPath restores a dataset or base URI carried in a request path.
// Paths carry either a suffix form, where the first segment is the scheme
// ("s3/bucket/uuid"), or a URL-escaped full URI. Path cleaning collapses
// "scheme://" to "scheme:/", which is undone here.
func URIFromPath(p string) string {
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}

	if i := strings.Index(p, ":/"); i > 0 && !strings.Contains(p[:i], "/") {
		scheme, rest := p[:i], strings.TrimLeft(p[i+2:], "/")
		if scheme == "file" {
			return scheme + ":///" + rest
		}
		return scheme + "://" + rest
	}

	scheme, rest, ok := strings.Cut(p, "/")
	if !ok {
		return p
	}
	if scheme == "file" {
		return "file:///" + strings.TrimLeft(rest, "/")
	}
	return scheme + "://" + rest
}

// PathFromURI is the inverse of URIFromPath in suffix form.
func PathFromURI(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	return scheme + "/" + strings.TrimLeft(rest, "/")
}
