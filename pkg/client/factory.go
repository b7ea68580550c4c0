package client

import "time"

// New returns a Client that will use the State API if it answers,
// otherwise falls back to the client built by fallback.
//
// Callers don't need to know whether the API server is running; the same
// interface works in both modes. A nil fallback always yields the
// RemoteClient, whose calls then fail with API_UNAVAILABLE.
func New(baseURL string, timeout time.Duration, fallback func() (Client, error)) (Client, error) {
	remote := NewRemoteClient(baseURL, timeout)
	if fallback == nil || remote.IsRunning() {
		return remote, nil
	}

	_ = remote.Close()
	return fallback()
}
