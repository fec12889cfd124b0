package bitbucket

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/bgentry/go-netrc/netrc"
)

// NetrcMachine is the netrc entry consulted for credentials.
const NetrcMachine = "api.bitbucket.org"

// Credentials authenticate with HTTP basic auth (username + app password).
type Credentials struct {
	Username string
	Password string
}

// IsZero reports whether no credentials are set.
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == ""
}

// Header returns the Authorization header for c, or an empty header for
// anonymous access.
func (c Credentials) Header() http.Header {
	h := make(http.Header)
	if c.IsZero() {
		return h
	}
	token := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
	h.Set("Authorization", "Basic "+token)
	return h
}

// ResolveCredentials returns username/password when both are set, and
// otherwise the NetrcMachine entry of netrcPath. A missing netrc file or
// entry yields zero Credentials.
func ResolveCredentials(username, password, netrcPath string) (Credentials, error) {
	if username != "" && password != "" {
		return Credentials{Username: username, Password: password}, nil
	}
	if username != "" || password != "" {
		return Credentials{}, fmt.Errorf("bitbucket username and app password must be set together")
	}
	if netrcPath == "" {
		return Credentials{}, nil
	}

	machine, err := netrc.FindMachine(netrcPath, NetrcMachine)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, nil
		}
		return Credentials{}, fmt.Errorf("read netrc %s: %w", netrcPath, err)
	}
	if machine == nil || machine.IsDefault() {
		return Credentials{}, nil
	}
	return Credentials{Username: machine.Login, Password: machine.Password}, nil
}
