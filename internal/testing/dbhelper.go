package testing

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/vvka-141/bendsink/internal/db"
	"github.com/vvka-141/bendsink/internal/testinfra"
	"github.com/vvka-141/bendsink/pkg/bendsink"
)

var (
	testContainerOnce sync.Once
	testContainerConn string
	testContainerErr  error
)

func getOrStartTestContainer() (string, error) {
	testContainerOnce.Do(func() {
		container, err := testinfra.StartPostgres(context.Background())
		if err != nil {
			testContainerErr = err
			return
		}
		testContainerConn = container.ConnString
	})
	return testContainerConn, testContainerErr
}

// SkipIfShort skips the test if running in short mode (-short flag).
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequirePostgres returns a PostgreSQL connection string for wire-protocol tests.
// Priority: BENDSINK_TEST_PG env var > auto-started testcontainer > skip test.
func RequirePostgres(t *testing.T) string {
	t.Helper()
	SkipIfShort(t)

	if connString := os.Getenv("BENDSINK_TEST_PG"); connString != "" {
		return connString
	}

	connString, err := getOrStartTestContainer()
	if err != nil {
		t.Skipf("BENDSINK_TEST_PG not set and Docker unavailable: %v", err)
	}
	return connString
}

// RequireWarehouse returns the DSN of a real warehouse from BENDSINK_TEST_DSN.
// Stage and PRESIGN statements only run against the warehouse itself, so
// there is no container fallback.
func RequireWarehouse(t *testing.T) string {
	t.Helper()
	SkipIfShort(t)

	dsn := os.Getenv("BENDSINK_TEST_DSN")
	if dsn == "" {
		t.Skip("BENDSINK_TEST_DSN not set")
	}
	return dsn
}

// Connect opens a control connection to dsn and closes it when the test ends.
func Connect(t *testing.T, dsn string) bendsink.Conn {
	t.Helper()

	config, err := db.ParseConnectionString(dsn)
	if err != nil {
		t.Fatalf("parse connection string: %v", err)
	}
	connector, err := db.NewConnector(config, nil)
	if err != nil {
		t.Fatalf("create connector: %v", err)
	}
	conn, err := connector.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}
