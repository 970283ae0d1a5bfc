package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cppla/blogposts/utils"
)

var client = &http.Client{Timeout: 10 * time.Second}

// Run executes fn as a subtest between BeforeEach and AfterEach.
// Teardown is registered with t.Cleanup, so it runs even when fn fails.
func (h *Harness) Run(t *testing.T, name string, fn func(t *testing.T, h *Harness)) bool {
	t.Helper()
	return t.Run(name, func(t *testing.T) {
		require.NoError(t, h.BeforeEach(context.Background()))
		t.Cleanup(func() {
			if err := h.AfterEach(context.Background()); err != nil {
				t.Errorf("teardown: %v", err)
			}
		})
		require.NoError(t, h.Exercise())
		fn(t, h)
	})
}

// Main starts h, runs the package tests and stops h. Use it from TestMain:
//
//	var h = harness.New(harness.Options{})
//
//	func TestMain(m *testing.M) { os.Exit(harness.Main(m, h)) }
func Main(m *testing.M, h *Harness) (code int) {
	ctx := context.Background()
	if err := h.BeforeAll(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "harness: %v\n", err)
		return 1
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, utils.DEFAULT_SHUTDOWN_TIMEOUT)
		defer cancel()
		if err := h.AfterAll(stopCtx); err != nil {
			fmt.Fprintf(os.Stderr, "harness: %v\n", err)
			if code == 0 {
				code = 1
			}
		}
	}()
	return m.Run()
}

// Get issues a GET against the running server.
func (h *Harness) Get(t testing.TB, path string) *http.Response {
	t.Helper()
	return h.Do(t, http.MethodGet, path, nil)
}

// PostJSON sends body as JSON. A string, []byte or json.RawMessage body is sent verbatim.
func (h *Harness) PostJSON(t testing.TB, path string, body any) *http.Response {
	t.Helper()
	return h.Do(t, http.MethodPost, path, encode(t, body))
}

// PutJSON sends body as JSON, like PostJSON.
func (h *Harness) PutJSON(t testing.TB, path string, body any) *http.Response {
	t.Helper()
	return h.Do(t, http.MethodPut, path, encode(t, body))
}

// Delete issues a DELETE against the running server.
func (h *Harness) Delete(t testing.TB, path string) *http.Response {
	t.Helper()
	return h.Do(t, http.MethodDelete, path, nil)
}

// Do sends a request with an optional JSON body. The response body is closed when the test ends.
func (h *Harness) Do(t testing.TB, method, path string, body []byte) *http.Response {
	t.Helper()
	base := h.URL()
	require.NotEmpty(t, base, "harness is not running")

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, base+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// DecodeJSON reads the whole response body into v.
func DecodeJSON(t testing.TB, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func encode(t testing.TB, body any) []byte {
	t.Helper()
	switch b := body.(type) {
	case string:
		return []byte(b)
	case []byte:
		return b
	case json.RawMessage:
		return b
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return data
}
