package fetch

import (
	"context"
	"errors"
	"fmt"
	"hlstaild/internal/logger"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger is a no-op logger for testing purposes.
type mockLogger struct{}

func (m *mockLogger) Debugf(format string, v ...interface{}) {}
func (m *mockLogger) Infof(format string, v ...interface{})  {}
func (m *mockLogger) Warnf(format string, v ...interface{})  {}
func (m *mockLogger) Errorf(format string, v ...interface{}) {}
func (m *mockLogger) With(args ...interface{}) logger.Logger { return m }

func TestClient_FetchSuccess(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, "#EXTM3U\n")
	}))
	defer server.Close()

	client := NewClient(&mockLogger{}, "test-agent", time.Second)
	body, err := client.Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", body)
	assert.Equal(t, "test-agent", gotAgent)
}

func TestClient_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old.m3u8", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new.m3u8", http.StatusFound)
	})
	mux.HandleFunc("/new.m3u8", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "redirected")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(&mockLogger{}, "", time.Second)
	body, err := client.Fetch(context.Background(), server.URL+"/old.m3u8")

	require.NoError(t, err)
	assert.Equal(t, "redirected", body)
}

func TestClient_HTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(&mockLogger{}, "", time.Second)
	_, err := client.Fetch(context.Background(), server.URL)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeHTTPStatus, te.Code)
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
	assert.Contains(t, err.Error(), "status 404")
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(&mockLogger{}, "", 50*time.Millisecond)
	_, err := client.Fetch(context.Background(), server.URL)

	require.Error(t, err)
	assert.Equal(t, CodeTimeout, Code(err))
}

func TestClient_ConnectionReset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		// Promise a body and hang up half way through it.
		fmt.Fprint(conn, "HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\n#EXTM3U")
		conn.Close()
	}))
	defer server.Close()

	client := NewClient(&mockLogger{}, "", time.Second)
	_, err := client.Fetch(context.Background(), server.URL)

	require.Error(t, err)
	assert.Equal(t, CodeConnReset, Code(err))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	cases := map[string]error{
		CodeConnReset:   fmt.Errorf("read: %w", syscall.ECONNRESET),
		CodeTimeout:     &net.OpError{Op: "read", Err: timeoutErr{}},
		CodeConnRefused: fmt.Errorf("dial: %w", syscall.ECONNREFUSED),
		CodeUnknown:     errors.New("something else"),
	}
	for want, err := range cases {
		assert.Equal(t, want, classify(err), "error %v", err)
	}
	assert.Equal(t, CodeConnReset, classify(io.ErrUnexpectedEOF))
	assert.Equal(t, CodeTimeout, classify(context.DeadlineExceeded))
}

func TestCodeOfWrappedError(t *testing.T) {
	err := fmt.Errorf("cycle: %w", &TransportError{Code: CodeTimeout, URL: "u"})
	assert.Equal(t, CodeTimeout, Code(err))
	assert.Equal(t, "", Code(errors.New("plain")))
}
