package testutil

import "net/http"

// WithSessionCookie attaches a session key the way a browser would.
func WithSessionCookie(req *http.Request, name, key string) *http.Request {
	req.AddCookie(&http.Cookie{Name: name, Value: key})
	return req
}

// WithBearer attaches a session key as a bearer token.
func WithBearer(req *http.Request, key string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+key)
	return req
}
