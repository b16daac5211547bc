package bendsink

import (
	"context"
)

// Connector establishes the warehouse control connection.
// Implementations differ by wire protocol (PostgreSQL, MySQL).
type Connector interface {
	// Connect opens and pings the connection. The caller closes the result.
	Connect(ctx context.Context) (Conn, error)
}
