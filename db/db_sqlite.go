package db

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/m-mizutani/goerr/v2"
)

// SQLite's DATETIME() format, so stored values compare correctly with it
const sqliteTimeFormat = "2006-01-02 15:04:05"

type sqliteDb struct {
	pool          *sqlitex.Pool
	timeoutString string
	done          chan struct{}
	closeOnce     sync.Once
}

func sqliteExec(conn *sqlite.Conn, statement string) error {
	stmt, _, err := conn.PrepareTransient(statement)
	if err != nil {
		return err
	}
	defer stmt.Finalize()

	_, err = stmt.Step()
	return err
}

func newSqliteDb(dbname string, sessionTimeout int) (*sqliteDb, error) {
	poolsize := 5
	if dbname == ":memory:" {
		dbname = "file:memory:?mode=memory"
		poolsize = 1 // memory database is not shared between connections
	}

	dbpool, err := sqlitex.Open(dbname, 0, poolsize)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open connection pool")
	}

	conn := dbpool.Get(context.Background())
	if conn == nil {
		dbpool.Close()
		return nil, ErrNoConnection
	}
	defer dbpool.Put(conn)

	// Prepare the database
	schema := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
		host TEXT NOT NULL,
		port INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		protocol TEXT NOT NULL,
		title TEXT NOT NULL,
		users INTEGER NOT NULL,
		password INTEGER NOT NULL,
		nsfm INTEGER NOT NULL,
		owner TEXT NOT NULL,
		started TEXT NOT NULL,
		last_active TEXT NOT NULL,
		update_key TEXT NOT NULL,
		client_ip TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS hostbans (
		host TEXT NOT NULL,
		expires TEXT,
		notes TEXT NOT NULL DEFAULT ''
		);`,
	}
	for _, s := range schema {
		if err := sqliteExec(conn, s); err != nil {
			dbpool.Close()
			return nil, goerr.Wrap(err, "failed to create schema")
		}
	}

	db := &sqliteDb{
		pool:          dbpool,
		timeoutString: fmt.Sprintf("-%d minutes", sessionTimeout),
		done:          make(chan struct{}),
	}

	go db.cleanupTask(24 * time.Hour)

	return db, nil
}

func (db *sqliteDb) cleanup() error {
	conn := db.pool.Get(context.TODO())
	if conn == nil {
		return ErrNoConnection
	}
	defer db.pool.Put(conn)
	return sqliteExec(conn, "DELETE FROM sessions WHERE last_active < DATETIME('now', '-1 day')")
}

func (db *sqliteDb) cleanupTask(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-db.done:
			return
		case <-ticker.C:
			db.cleanup()
		}
	}
}

func (db *sqliteDb) Close() error {
	var err error
	db.closeOnce.Do(func() {
		close(db.done)
		err = db.pool.Close()
	})
	return err
}

func (db *sqliteDb) conn(ctx context.Context) (*sqlite.Conn, error) {
	conn := db.pool.Get(ctx)
	if conn == nil {
		return nil, ErrNoConnection
	}
	return conn, nil
}

func (db *sqliteDb) QuerySessionList(ctx context.Context, opts QueryOptions) ([]SessionInfo, error) {
	querySql := `
	SELECT host, port, session_id, protocol, title, users, password, nsfm, owner, started
	FROM sessions
	WHERE last_active >= DATETIME('now', $timeout)`

	if len(opts.Title) > 0 {
		querySql += " AND title LIKE '%' || $title || '%'"
	}

	if !opts.Nsfm {
		querySql += " AND nsfm=0"
	}

	protocols := splitProtocols(opts.Protocol)

	if len(protocols) > 0 {
		placeholders := make([]string, len(protocols))
		for i := range protocols {
			placeholders[i] = fmt.Sprintf("$proto%d", i)
		}
		querySql += ` AND protocol IN (` + strings.Join(placeholders, ",") + `)`
	}

	querySql += ` ORDER BY title, users ASC`

	conn, err := db.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer db.pool.Put(conn)

	stmt := conn.Prep(querySql)
	defer stmt.Reset()

	stmt.SetText("$timeout", db.timeoutString)

	if len(opts.Title) > 0 {
		stmt.SetText("$title", opts.Title)
	}

	for i, v := range protocols {
		stmt.SetText(fmt.Sprintf("$proto%d", i), v)
	}

	sessions := []SessionInfo{}
	for {
		if hasRow, err := stmt.Step(); err != nil {
			return sessions, goerr.Wrap(err, "failed to query session list")
		} else if !hasRow {
			break
		}

		sessions = append(sessions, SessionInfo{
			Host:     stmt.GetText("host"),
			Port:     int(stmt.GetInt64("port")),
			Id:       stmt.GetText("session_id"),
			Protocol: stmt.GetText("protocol"),
			Title:    stmt.GetText("title"),
			Users:    int(stmt.GetInt64("users")),
			Password: stmt.GetInt64("password") != 0,
			Nsfm:     stmt.GetInt64("nsfm") != 0,
			Owner:    stmt.GetText("owner"),
			Started:  stmt.GetText("started"),
		})
	}

	return sessions, nil
}

func (db *sqliteDb) IsActiveSession(ctx context.Context, host, id string, port int) (bool, error) {
	conn, err := db.conn(ctx)
	if err != nil {
		return false, err
	}
	defer db.pool.Put(conn)

	stmt := conn.Prep(`SELECT EXISTS(SELECT 1
	FROM sessions
	WHERE host=$host AND port=$port AND session_id=$id
	AND last_active >= DATETIME('now', $timeout)
	)`)
	defer stmt.Reset()

	stmt.SetText("$host", host)
	stmt.SetText("$id", id)
	stmt.SetInt64("$port", int64(port))
	stmt.SetText("$timeout", db.timeoutString)

	if hasRow, err := stmt.Step(); err != nil {
		return false, err
	} else if !hasRow {
		return false, nil
	}

	return stmt.ColumnInt(0) != 0, nil
}

func (db *sqliteDb) GetHostSessionCount(ctx context.Context, host string) (int, error) {
	conn, err := db.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer db.pool.Put(conn)

	stmt := conn.Prep(`SELECT COUNT(*) FROM sessions
	WHERE host=$host AND last_active >= DATETIME('now', $timeout)
	`)
	defer stmt.Reset()

	stmt.SetText("$host", host)
	stmt.SetText("$timeout", db.timeoutString)

	if hasRow, err := stmt.Step(); err != nil {
		return 0, err
	} else if !hasRow {
		return 0, goerr.New("no row returned")
	}

	return stmt.ColumnInt(0), nil
}

func (db *sqliteDb) IsBannedHost(ctx context.Context, host string) (bool, error) {
	conn, err := db.conn(ctx)
	if err != nil {
		return false, err
	}
	defer db.pool.Put(conn)

	stmt := conn.Prep(`SELECT EXISTS(SELECT 1
	FROM hostbans
	WHERE host=$host AND (expires IS NULL OR expires > DATETIME('now'))
	)`)
	defer stmt.Reset()

	stmt.SetText("$host", host)

	if hasRow, err := stmt.Step(); err != nil {
		return false, err
	} else if !hasRow {
		return false, goerr.New("no row returned")
	}

	return stmt.ColumnInt(0) != 0, nil
}

func (db *sqliteDb) InsertSession(ctx context.Context, session SessionInfo, clientIp string) (NewSessionInfo, error) {
	updateKey, err := generateUpdateKey()
	if err != nil {
		return NewSessionInfo{}, err
	}

	conn, err := db.conn(ctx)
	if err != nil {
		return NewSessionInfo{}, err
	}
	defer db.pool.Put(conn)

	stmt := conn.Prep(`INSERT INTO sessions
	(host, port, session_id, protocol, title, users, password, nsfm,
	owner, started, last_active, update_key, client_ip)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'), CURRENT_TIMESTAMP, ?, ?)
	`)
	defer stmt.Reset()

	i := sqlite.BindIncrementor()
	stmt.BindText(i(), session.Host)
	stmt.BindInt64(i(), int64(session.Port))
	stmt.BindText(i(), session.Id)
	stmt.BindText(i(), session.Protocol)
	stmt.BindText(i(), session.Title)
	stmt.BindInt64(i(), int64(session.Users))
	stmt.BindBool(i(), session.Password)
	stmt.BindBool(i(), session.Nsfm)
	stmt.BindText(i(), session.Owner)
	stmt.BindText(i(), updateKey)
	stmt.BindText(i(), clientIp)

	if _, err := stmt.Step(); err != nil {
		return NewSessionInfo{}, goerr.Wrap(err, "failed to insert session")
	}

	return NewSessionInfo{conn.LastInsertRowID(), updateKey}, nil
}

func (db *sqliteDb) InsertHostBan(ctx context.Context, ban HostBan) (int64, error) {
	conn, err := db.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer db.pool.Put(conn)

	stmt := conn.Prep(`INSERT INTO hostbans (host, expires, notes) VALUES ($host, $expires, $notes)`)
	defer stmt.Reset()

	stmt.SetText("$host", ban.Host)
	if ban.Expires.IsZero() {
		stmt.SetNull("$expires")
	} else {
		stmt.SetText("$expires", ban.Expires.UTC().Format(sqliteTimeFormat))
	}
	stmt.SetText("$notes", ban.Notes)

	if _, err := stmt.Step(); err != nil {
		return 0, goerr.Wrap(err, "failed to insert host ban")
	}

	return conn.LastInsertRowID(), nil
}

func (db *sqliteDb) QueryHostBans(ctx context.Context) ([]HostBan, error) {
	conn, err := db.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer db.pool.Put(conn)

	stmt := conn.Prep(`SELECT rowid AS id, host, expires, notes FROM hostbans ORDER BY rowid DESC`)
	defer stmt.Reset()

	bans := []HostBan{}
	for {
		if hasRow, err := stmt.Step(); err != nil {
			return bans, goerr.Wrap(err, "failed to query host bans")
		} else if !hasRow {
			break
		}

		ban := HostBan{
			Id:    stmt.GetInt64("id"),
			Host:  stmt.GetText("host"),
			Notes: stmt.GetText("notes"),
		}
		if stmt.GetType("expires") != sqlite.SQLITE_NULL {
			expires, err := time.Parse(sqliteTimeFormat, stmt.GetText("expires"))
			if err != nil {
				return bans, goerr.Wrap(err, "invalid expiry in host ban", goerr.V("id", ban.Id))
			}
			ban.Expires = expires
		}
		bans = append(bans, ban)
	}

	return bans, nil
}
