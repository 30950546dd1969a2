package db

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

var ErrNoConnection = goerr.New("database connection not available")

// Database is the listing storage used by the web front-end
type Database interface {
	// Get a list of active sessions that match the given query parameters
	QuerySessionList(ctx context.Context, opts QueryOptions) ([]SessionInfo, error)

	// Is there an active announcement for this session
	IsActiveSession(ctx context.Context, host, id string, port int) (bool, error)

	// Get the number of active announcements on this server (all ports)
	GetHostSessionCount(ctx context.Context, host string) (int, error)

	// Check if the given host is on the ban list
	IsBannedHost(ctx context.Context, host string) (bool, error)

	// Insert a new session. The data must have been validated already.
	InsertSession(ctx context.Context, session SessionInfo, clientIp string) (NewSessionInfo, error)

	InsertHostBan(ctx context.Context, ban HostBan) (int64, error)

	// List all host bans, including expired ones, newest first
	QueryHostBans(ctx context.Context) ([]HostBan, error)

	Close() error
}

// InitDatabase opens the named database. "memory" selects the in-process
// store; anything else is a SQLite database path (":memory:" for a
// throwaway SQLite database).
func InitDatabase(name string, sessionTimeout int) (Database, error) {
	if len(name) == 0 {
		return nil, goerr.New("no database configured")
	}
	if sessionTimeout <= 0 {
		return nil, goerr.New("session timeout must be positive", goerr.V("timeout", sessionTimeout))
	}

	if name == "memory" {
		return newMemoryDb(sessionTimeout), nil
	}

	db, err := newSqliteDb(name, sessionTimeout)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("name", name))
	}
	return db, nil
}
