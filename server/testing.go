/*
	This file contains functions useful for testing the proxy in other packages.
	Unfortunately, due to the way Go handles compilation of *_test.go files,
	these functions cannot be in server_test.go since they will be unavailable
	to test files in external packages.  So these functions are exported and
	contain the "Test" keyword.
*/

package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/janelia-flyem/dvidproxy/storage"
)

// NewTestService returns a service over the stack described by TOML
// configuration.  The stack is closed when the test completes.
func NewTestService(t *testing.T, toml string) *Service {
	config, err := ParseConfig(toml)
	if err != nil {
		t.Fatalf("Bad test configuration: %v\n", err)
	}
	store, err := config.NewStack()
	if err != nil {
		t.Fatalf("Unable to create test stack: %v\n", err)
	}
	t.Cleanup(func() {
		if err := storage.Close(store); err != nil {
			t.Errorf("Error closing test stack: %v\n", err)
		}
	})
	return NewService(store, config.Server)
}

// TestHTTPResponse returns a response from a test request to the service.
// Use TestHTTP if you just want the response body bytes.
func TestHTTPResponse(t *testing.T, s *Service, method, urlStr string, payload io.Reader) *httptest.ResponseRecorder {
	req, err := http.NewRequest(method, urlStr, payload)
	if err != nil {
		t.Fatalf("Unsuccessful %s on %q: %v\n", method, urlStr, err)
	}
	resp := httptest.NewRecorder()
	s.Handler().ServeHTTP(resp, req)
	return resp
}

// TestHTTP returns the response body bytes for a test request, making sure any
// response has a 2xx status.
func TestHTTP(t *testing.T, s *Service, method, urlStr string, payload io.Reader) []byte {
	resp := TestHTTPResponse(t, s, method, urlStr, payload)
	if resp.Code < 200 || resp.Code >= 300 {
		t.Fatalf("Bad server response (%d) to %s on %q: %s\n", resp.Code, method, urlStr, resp.Body.String())
	}
	return resp.Body.Bytes()
}

// TestBadHTTP expects a response with the given error status code.
func TestBadHTTP(t *testing.T, s *Service, method, urlStr string, payload io.Reader, status int) {
	resp := TestHTTPResponse(t, s, method, urlStr, payload)
	if resp.Code != status {
		t.Fatalf("Expected status %d for %s on %q, got %d instead: %s\n", status, method, urlStr, resp.Code, resp.Body.String())
	}
}
