package cache

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// credentialHeaders are hashed into the key so that responses fetched with
// different credentials never share an entry.
var credentialHeaders = []string{"Authorization", "Circle-Token"}

// CacheKey represents a unique identifier for a cached API response.
type CacheKey struct {
	// Method is the HTTP method (only GET is cached by the client)
	Method string

	// URL is the absolute request URL
	URL string

	// Credential is a digest of the request credentials ("" for anonymous)
	Credential string
}

// KeyForRequest builds the cache key for req.
func KeyForRequest(req *http.Request) CacheKey {
	return CacheKey{
		Method:     req.Method,
		URL:        req.URL.String(),
		Credential: CredentialDigest(req.Header),
	}
}

// CredentialDigest returns a short hex digest of the credential headers in h,
// or "" when none are set.
func CredentialDigest(h http.Header) string {
	var b strings.Builder
	for _, name := range credentialHeaders {
		if v := h.Get(name); v != "" {
			b.WriteString(name)
			b.WriteByte('=')
			b.WriteString(v)
			b.WriteByte('\n')
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

// String generates a deterministic cache key string.
// Format: apictl:cache:METHOD:normalized-url[:cred=digest]
//
// Example:
//
//	apictl:cache:GET:https://api.bitbucket.org/2.0/repositories/acme?page=2&pagelen=100:cred=9f86d081884c7d65
func (k CacheKey) String() string {
	method := strings.ToUpper(k.Method)
	if method == "" {
		method = http.MethodGet
	}
	parts := []string{"apictl", "cache", method, normalizeURL(k.URL)}
	if k.Credential != "" {
		parts = append(parts, "cred="+k.Credential)
	}
	return strings.Join(parts, ":")
}

// normalizeURL sorts the query parameters and drops the fragment. Unparseable
// URLs are used verbatim.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	u.Host = strings.ToLower(u.Host)
	return u.String()
}
