package upload

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/bendsink/internal/testinfra"
	"github.com/vvka-141/bendsink/pkg/bendsink"
)

func startTLSStore(t *testing.T, ca *testinfra.TestCA, received *[]byte) *httptest.Server {
	t.Helper()
	cert, err := ca.Issue("127.0.0.1")
	require.NoError(t, err)
	pair, err := cert.TLSCertificate()
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	srv.TLS = &tls.Config{Certificates: []tls.Certificate{pair}}
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

func TestUploadFile_HTTPSWithPrivateCA(t *testing.T) {
	ca, err := testinfra.NewTestCA()
	require.NoError(t, err)

	var received []byte
	srv := startTLSStore(t, ca, &received)

	path := filepath.Join(t.TempDir(), "batch.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,alice\n"), 0o644))

	client := &http.Client{Transport: &http.Transport{TLSClientConfig: ca.ClientTLSConfig()}}
	u := NewUploader(WithHTTPClient(client))

	status, err := u.UploadFile(context.Background(), bendsink.PresignedTarget{
		Method: http.MethodPut,
		URL:    srv.URL + "/stage/batch.csv?X-Amz-Signature=secret",
	}, path)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1,alice\n", string(received))
}

func TestUploadFile_UntrustedCertificate(t *testing.T) {
	ca, err := testinfra.NewTestCA()
	require.NoError(t, err)

	var received []byte
	srv := startTLSStore(t, ca, &received)

	path := filepath.Join(t.TempDir(), "batch.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,alice\n"), 0o644))

	u := NewUploader()
	status, err := u.UploadFile(context.Background(), bendsink.PresignedTarget{
		Method: http.MethodPut,
		URL:    srv.URL + "/stage/batch.csv?X-Amz-Signature=secret",
	}, path)
	require.Error(t, err)
	assert.Zero(t, status)
	assert.True(t, errors.Is(err, bendsink.ErrUpload))
	assert.NotContains(t, err.Error(), "secret")
	assert.Nil(t, received)
}
