// Package testutil holds helpers shared by package tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

// SkipIfNoNetwork skips the test if THREADLINE_TEST_SKIP_NETWORK is set.
// Use this for tests that listen on loopback TCP, which sandboxed
// environments may not allow.
func SkipIfNoNetwork(t *testing.T) {
	t.Helper()
	if os.Getenv("THREADLINE_TEST_SKIP_NETWORK") != "" {
		t.Skip("skipping network test: THREADLINE_TEST_SKIP_NETWORK is set")
	}
}

// NewServer starts an httptest server for handler and closes it on cleanup.
func NewServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	SkipIfNoNetwork(t)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}
