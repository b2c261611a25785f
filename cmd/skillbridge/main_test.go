package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glimte/skillbridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const discovery = `{
  "directive": {
    "header": {
      "namespace": "Alexa.Discovery",
      "name": "Discover",
      "payloadVersion": "3",
      "messageId": "msg-1",
      "correlationToken": "corr-token"
    },
    "payload": {"scope": {"type": "BearerToken", "token": "discovery-token"}}
  }
}`

func runCLI(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func newBackend(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInvoke(t *testing.T) {
	t.Run("prints the backend response", func(t *testing.T) {
		srv := newBackend(t, http.StatusOK, `{"event":{"header":{"name":"Discover.Response"}}}`)
		t.Setenv("BASE_URL", srv.URL)

		stdout, stderr, err := runCLI(t, discovery, "invoke", "--log-format", "json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"event":{"header":{"name":"Discover.Response"}}}`, stdout)
		assert.Contains(t, stderr, `"msg":"processing directive"`)
		assert.NotContains(t, stderr, "discovery-token")
	})

	t.Run("reads a file argument", func(t *testing.T) {
		srv := newBackend(t, http.StatusOK, `{"ok":true}`)
		t.Setenv("BASE_URL", srv.URL)

		path := filepath.Join(t.TempDir(), "directive.json")
		require.NoError(t, os.WriteFile(path, []byte(discovery), 0o600))

		stdout, _, err := runCLI(t, "", "invoke", path)
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, stdout)
	})

	t.Run("prints the failure kind", func(t *testing.T) {
		srv := newBackend(t, http.StatusOK, `{}`)
		t.Setenv("BASE_URL", srv.URL)

		stdout, _, err := runCLI(t, `{"directive":{}}`, "invoke", "-")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MalformedRequest")
		assert.Contains(t, stdout, `"errorType":"MalformedRequest"`)
	})

	t.Run("requires a base URL", func(t *testing.T) {
		t.Setenv("BASE_URL", "")

		_, _, err := runCLI(t, discovery, "invoke")
		assert.ErrorIs(t, err, config.ErrMissingBaseURL)
	})

	t.Run("rejects an unknown log level", func(t *testing.T) {
		t.Setenv("BASE_URL", "http://ha.example.com")

		_, _, err := runCLI(t, discovery, "invoke", "--log-level", "loud")
		assert.Error(t, err)
	})
}

func TestConsumeRequiresBroker(t *testing.T) {
	t.Setenv("BASE_URL", "http://ha.example.com")
	t.Setenv("AMQP_URL", "")

	_, _, err := runCLI(t, "", "consume")
	assert.ErrorIs(t, err, config.ErrMissingAMQPURL)
}

func TestVersion(t *testing.T) {
	stdout, _, err := runCLI(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "dev")
}
