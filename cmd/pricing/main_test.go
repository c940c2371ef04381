package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricing.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func occupiedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "0.0.0.0:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l.Addr().(*net.TCPAddr).Port
}

const quietLogger = `
[logger]
level = "error"
format = "text"
output = "stderr"
`

func TestRunReturnsConfigError(t *testing.T) {
	err := run(writeConfig(t, "[http]\nport = 70000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRunReturnsListenErrorAfterCleanup(t *testing.T) {
	port := occupiedPort(t)
	path := writeConfig(t, fmt.Sprintf(`
[grpc]
enabled = true
host = "0.0.0.0"
port = %d

[kafka]
enabled = true
brokers = ["127.0.0.1:1"]

[rate_limit]
enabled = true
backend = "memory"
qps = 10
burst = 10
%s`, port, quietLogger))

	done := make(chan error, 1)
	go func() { done <- run(path) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to listen on gRPC address")
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
}

func TestRunReturnsHTTPServeError(t *testing.T) {
	port := occupiedPort(t)
	path := writeConfig(t, fmt.Sprintf(`
[http]
host = "0.0.0.0"
port = %d

[grpc]
enabled = false

[rate_limit]
enabled = false
%s`, port, quietLogger))

	done := make(chan error, 1)
	go func() { done <- run(path) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP server error")
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
}
