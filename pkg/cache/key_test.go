package cache

import (
	"net/http"
	"strings"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "anonymous get",
			key:  CacheKey{Method: "GET", URL: "https://api.bitbucket.org/2.0/repositories/acme"},
			want: "apictl:cache:GET:https://api.bitbucket.org/2.0/repositories/acme",
		},
		{
			name: "method defaults to GET",
			key:  CacheKey{URL: "https://circleci.com/api/v2/me"},
			want: "apictl:cache:GET:https://circleci.com/api/v2/me",
		},
		{
			name: "query sorted",
			key:  CacheKey{Method: "get", URL: "https://api.test/items?z=1&a=2"},
			want: "apictl:cache:GET:https://api.test/items?a=2&z=1",
		},
		{
			name: "fragment dropped and host lowered",
			key:  CacheKey{Method: "GET", URL: "https://API.Test/items#top"},
			want: "apictl:cache:GET:https://api.test/items",
		},
		{
			name: "credential appended",
			key:  CacheKey{Method: "GET", URL: "https://api.test/items", Credential: "abc123"},
			want: "apictl:cache:GET:https://api.test/items:cred=abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCredentialDigest(t *testing.T) {
	empty := http.Header{}
	if d := CredentialDigest(empty); d != "" {
		t.Errorf("CredentialDigest(empty) = %q, want empty", d)
	}

	alice := http.Header{"Authorization": []string{"Basic YWxpY2U6eA=="}}
	bob := http.Header{"Authorization": []string{"Basic Ym9iOnk="}}
	circle := http.Header{"Circle-Token": []string{"Basic YWxpY2U6eA=="}}

	da, db, dc := CredentialDigest(alice), CredentialDigest(bob), CredentialDigest(circle)
	if da == "" || da == db {
		t.Errorf("digests must be non-empty and differ per credential: %q %q", da, db)
	}
	if da == dc {
		t.Errorf("header name must be part of the digest")
	}
	if CredentialDigest(alice.Clone()) != da {
		t.Errorf("digest must be deterministic")
	}
	if strings.Contains(da, "YWxpY2U") {
		t.Errorf("digest leaks the credential: %q", da)
	}
}

func TestKeyForRequest(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://api.test/items?b=2&a=1", nil)
	req.Header.Set("Circle-Token", "secret")

	key := KeyForRequest(req)
	if key.Method != http.MethodGet {
		t.Errorf("Method = %q", key.Method)
	}
	if key.Credential == "" {
		t.Errorf("Credential digest missing")
	}
	if !strings.HasPrefix(key.String(), "apictl:cache:GET:https://api.test/items?a=1&b=2:cred=") {
		t.Errorf("String() = %q", key.String())
	}
}
