package main

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credprobe/src/model"
)

// newLoginSite serves a minimal wp-login.php that accepts admin/password.
func newLoginSite(t *testing.T, password string) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-login.php", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte("login"))
			return
		}
		if r.PostFormValue("log") == "admin" && r.PostFormValue("pwd") == password {
			_, _ = w.Write([]byte("Dashboard"))
			return
		}
		_, _ = w.Write([]byte("ERROR"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL + "/wp-login.php"
}

func passwordFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "passwords.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_FindsPassword(t *testing.T) {
	address := newLoginSite(t, "c")
	file := passwordFile(t, "a\nb\nc\nd\ne\n")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-address", address, "-user", "admin", "-j", "2", file}, &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	out := stdout.String()
	assert.Contains(t, out, "Total passwords: 5\n")
	assert.Contains(t, out, "Progress: 2/5\n")
	assert.Contains(t, out, "Progress: 4/5\n")
	assert.NotContains(t, out, "Progress: 5/5")
	assert.Contains(t, out, "Username: 'admin'\nPassword: 'c'\n")
}

func TestRun_NothingFound(t *testing.T) {
	address := newLoginSite(t, "zzz")
	file := passwordFile(t, "a\nb\nc\n")

	var stdout, stderr bytes.Buffer
	code := run([]string{file, "-address", address, "-user", "admin", "-quiet"}, &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	assert.Equal(t, "Total passwords: 3\nProgress: 3/3\nNo valid credentials found.\n", stdout.String())
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	require.NoError(t, l.Close())
	return port
}

func TestRun_StatusAPIOutlivesRun(t *testing.T) {
	address := newLoginSite(t, "zzz")
	file := passwordFile(t, "a\nb\nc\n")
	port := freePort(t)

	var stdout, stderr bytes.Buffer
	code := make(chan int, 1)
	go func() {
		code <- run([]string{file, "-address", address, "-user", "admin", "-quiet",
			"-api-port", port, "-api-linger", "2s"}, &stdout, &stderr)
	}()

	var last model.StatusResponse
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + port + "/status")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if json.NewDecoder(resp.Body).Decode(&last) != nil {
			return false
		}
		return last.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, model.RunExhausted, last.Status)
	assert.Equal(t, 3, last.Processed)
	assert.Equal(t, exitOK, <-code, stderr.String())
}

func TestRun_MissingPasswordFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-address", "http://127.0.0.1:1/wp-login.php", "-user", "admin",
		filepath.Join(t.TempDir(), "missing.txt")}, &stdout, &stderr)

	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "open password file")
	assert.Empty(t, stdout.String())
}

func TestRun_BadArguments(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-user", "admin", "file.txt"}, &stdout, &stderr)

	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "-address")
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-h"}, &stdout, &stderr)

	assert.Equal(t, exitOK, code)
	assert.Contains(t, stderr.String(), "Usage: credprobe")
}

func TestRun_WatchNeedsChannel(t *testing.T) {
	t.Setenv("NOTIFY_CHANNEL", "")
	var stdout, stderr bytes.Buffer
	code := run([]string{"watch"}, &stdout, &stderr)

	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "notify channel")
}
