//go:build integration

package conntest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSLMode_VerifyCA(t *testing.T) {
	config := parseConnString(t, tlsContainer)
	require.Equal(t, "verify-ca", config.SSLMode)

	conn := connectWithConfig(t, config)

	var ssl bool
	err := conn.QueryRow(context.Background(), "SELECT ssl FROM pg_stat_ssl WHERE pid = pg_backend_pid()").Scan(&ssl)
	if err != nil {
		t.Skipf("pg_stat_ssl not available: %v", err)
	}
	assert.True(t, ssl, "connection should use SSL")
}

func TestSSLMode_Require(t *testing.T) {
	config := parseConnString(t, tlsContainer)
	config.SSLMode = "require"
	delete(config.AdditionalParams, "sslrootcert")

	conn := connectWithConfig(t, config)
	require.NoError(t, conn.Exec(context.Background(), "SELECT 1"))
}

func TestSSLMode_Disable(t *testing.T) {
	config := parseConnString(t, stdContainer)
	config.SSLMode = "disable"

	conn := connectWithConfig(t, config)
	require.NoError(t, conn.Exec(context.Background(), "SELECT 1"))
}
