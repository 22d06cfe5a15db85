package surface

import (
	"errors"
	"net/url"
)

var ErrNothingLoaded = errors.New("no video loaded")

// redact hides the access token carried in stream URLs.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
