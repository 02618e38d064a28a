package status_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/gdcpq/cmd/gdcpq/subcommands/status"
	"github.com/askiada/gdcpq/internal/gdc"
)

func TestRun(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			http.NotFound(w, r)

			return
		}
		_, _ = w.Write([]byte(`{"status":"OK","data_release":"Data Release 42.0","tag":"7.0.0","version":1}`))
	}))
	t.Cleanup(srv.Close)

	stdout := &bytes.Buffer{}
	require.NoError(t, status.Run(t.Context(), stdout, gdc.NewClient(gdc.WithBaseURL(srv.URL))))
	assert.Equal(t, "status: OK\nrelease: Data Release 42.0\nversion: 1 (7.0.0)\n", stdout.String())

	err := status.Run(t.Context(), stdout, gdc.NewClient(gdc.WithBaseURL(srv.URL+"/missing")))
	require.ErrorIs(t, err, gdc.ErrStatus)
}
