package db

import (
	"fmt"
	"strings"
	"time"
)

// The SessionInfo struct represents a session announcement fetched from the database
// It is also used to insert new entries.
// When inserting, the "Started" field is ignored and the current timestamp is used
type SessionInfo struct {
	Host     string
	Port     int
	Id       string
	Protocol string
	Title    string
	Users    int
	Password bool
	Nsfm     bool
	Owner    string
	Started  string
}

func (info SessionInfo) HostAddress() string {
	if strings.ContainsRune(info.Host, ':') {
		return fmt.Sprintf("[%s]:%d", info.Host, info.Port)
	} else {
		return fmt.Sprintf("%s:%d", info.Host, info.Port)
	}
}

// Info about a newly inserted session
type NewSessionInfo struct {
	ListingId int64
	UpdateKey string
}

// Session list querying options
type QueryOptions struct {
	Title    string // filter by title
	Nsfm     bool   // show NSFM sessions
	Protocol string // filter by protocol version (comma separated list accepted)
}

// HostBan prevents a host from announcing sessions.
// A zero Expires means the ban is permanent.
type HostBan struct {
	Id      int64
	Host    string
	Expires time.Time
	Notes   string
}

func (b HostBan) IsActive(now time.Time) bool {
	return b.Expires.IsZero() || b.Expires.After(now)
}

func splitProtocols(protocol string) []string {
	if protocol == "" {
		return nil
	}
	return strings.Split(protocol, ",")
}
