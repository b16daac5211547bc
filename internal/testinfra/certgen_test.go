package testinfra

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseCert(t *testing.T, data []byte) *x509.Certificate {
	t.Helper()
	block, _ := pem.Decode(data)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	return cert
}

func TestTestCA_IssueChainsToCA(t *testing.T) {
	ca, err := NewTestCA()
	require.NoError(t, err)

	srv, err := ca.Issue("localhost", "127.0.0.1")
	require.NoError(t, err)

	root := parseCert(t, ca.CertPEM())
	assert.True(t, root.IsCA)

	leaf := parseCert(t, srv.CertPEM)
	assert.False(t, leaf.IsCA)
	assert.Equal(t, []string{"localhost"}, leaf.DNSNames)
	require.Len(t, leaf.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", leaf.IPAddresses[0].String())

	_, err = leaf.Verify(x509.VerifyOptions{
		Roots:     ca.Pool(),
		DNSName:   "localhost",
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	assert.NoError(t, err)
}

func TestTestCA_SerialsDiffer(t *testing.T) {
	ca, err := NewTestCA()
	require.NoError(t, err)
	a, err := ca.Issue("localhost")
	require.NoError(t, err)
	b, err := ca.Issue("localhost")
	require.NoError(t, err)

	assert.NotEqual(t, parseCert(t, a.CertPEM).SerialNumber, parseCert(t, b.CertPEM).SerialNumber)
}

func TestTestCA_ServesHTTPS(t *testing.T) {
	ca, err := NewTestCA()
	require.NoError(t, err)
	srv, err := ca.Issue("127.0.0.1")
	require.NoError(t, err)
	pair, err := srv.TLSCertificate()
	require.NoError(t, err)

	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	server.TLS = &tls.Config{Certificates: []tls.Certificate{pair}}
	server.StartTLS()
	defer server.Close()

	trusted := &http.Client{Transport: &http.Transport{TLSClientConfig: ca.ClientTLSConfig()}}
	resp, err := trusted.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	other, err := NewTestCA()
	require.NoError(t, err)
	untrusted := &http.Client{Transport: &http.Transport{TLSClientConfig: other.ClientTLSConfig()}}
	_, err = untrusted.Get(server.URL)
	assert.Error(t, err)
}

func TestTestCA_WriteFiles(t *testing.T) {
	ca, err := NewTestCA()
	require.NoError(t, err)
	srv, err := ca.Issue("localhost")
	require.NoError(t, err)

	paths, err := ca.WriteFiles(t.TempDir(), srv)
	require.NoError(t, err)

	for _, p := range []string{paths.CACert, paths.ServerCert, paths.ServerKey} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		if runtime.GOOS != "windows" {
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), p)
		}
	}

	data, err := os.ReadFile(paths.ServerKey)
	require.NoError(t, err)
	assert.Equal(t, srv.KeyPEM, data)
}
