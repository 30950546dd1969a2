package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type session struct {
	info      SessionInfo
	id        int64
	expires   time.Time
	updateKey string
}

type memoryDb struct {
	mutex          sync.Mutex
	sessions       []session
	bans           []HostBan
	lastId         int64
	lastBanId      int64
	sessionTimeout time.Duration
	now            func() time.Time
	done           chan struct{}
	closeOnce      sync.Once
}

func newMemoryDb(sessionTimeout int) *memoryDb {
	db := &memoryDb{
		sessionTimeout: time.Duration(sessionTimeout) * time.Minute,
		now:            time.Now,
		done:           make(chan struct{}),
	}

	go db.cleanupRoutine(15 * time.Minute)

	return db
}

func (db *memoryDb) isActive(s *session) bool {
	return s.expires.After(db.now())
}

func (db *memoryDb) cleanupRoutine(interval time.Duration) {
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

func (db *memoryDb) cleanup() {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	active := db.sessions[:0]
	for i := range db.sessions {
		if db.isActive(&db.sessions[i]) {
			active = append(active, db.sessions[i])
		}
	}
	db.sessions = active
}

func (db *memoryDb) Close() error {
	db.closeOnce.Do(func() { close(db.done) })
	return nil
}

func matchTitle(title, substring string) bool {
	if substring == "" {
		return true
	}

	return strings.Contains(strings.ToLower(title), strings.ToLower(substring))
}

func matchProtocol(protocol string, protocols []string) bool {
	if len(protocols) == 0 {
		return true
	}

	for _, p := range protocols {
		if protocol == p {
			return true
		}
	}

	return false
}

func (db *memoryDb) QuerySessionList(ctx context.Context, opts QueryOptions) ([]SessionInfo, error) {
	sessions := []SessionInfo{}
	protocols := splitProtocols(opts.Protocol)

	db.mutex.Lock()
	for i := range db.sessions {
		s := &db.sessions[i]
		if db.isActive(s) &&
			matchTitle(s.info.Title, opts.Title) &&
			(opts.Nsfm || !s.info.Nsfm) &&
			matchProtocol(s.info.Protocol, protocols) {
			sessions = append(sessions, s.info)
		}
	}
	db.mutex.Unlock()

	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].Title != sessions[j].Title {
			return sessions[i].Title < sessions[j].Title
		}
		return sessions[i].Users < sessions[j].Users
	})

	return sessions, nil
}

func (db *memoryDb) IsActiveSession(ctx context.Context, host, id string, port int) (bool, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	for i := range db.sessions {
		s := &db.sessions[i]
		if s.info.Host == host && s.info.Id == id && s.info.Port == port && db.isActive(s) {
			return true, nil
		}
	}
	return false, nil
}

func (db *memoryDb) GetHostSessionCount(ctx context.Context, host string) (int, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	count := 0
	for i := range db.sessions {
		if db.sessions[i].info.Host == host && db.isActive(&db.sessions[i]) {
			count += 1
		}
	}

	return count, nil
}

func (db *memoryDb) IsBannedHost(ctx context.Context, host string) (bool, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	now := db.now()
	for _, b := range db.bans {
		if b.Host == host && b.IsActive(now) {
			return true, nil
		}
	}
	return false, nil
}

func (db *memoryDb) InsertSession(ctx context.Context, sessionInfo SessionInfo, clientIp string) (NewSessionInfo, error) {
	updateKey, err := generateUpdateKey()
	if err != nil {
		return NewSessionInfo{}, err
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	now := db.now()
	db.lastId += 1
	sessionInfo.Started = now.UTC().Format(time.RFC3339)
	db.sessions = append(db.sessions, session{
		info:      sessionInfo,
		id:        db.lastId,
		expires:   now.Add(db.sessionTimeout),
		updateKey: updateKey,
	})

	return NewSessionInfo{db.lastId, updateKey}, nil
}

func (db *memoryDb) InsertHostBan(ctx context.Context, ban HostBan) (int64, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.lastBanId += 1
	ban.Id = db.lastBanId
	db.bans = append(db.bans, ban)
	return ban.Id, nil
}

func (db *memoryDb) QueryHostBans(ctx context.Context) ([]HostBan, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	bans := make([]HostBan, 0, len(db.bans))
	for i := len(db.bans) - 1; i >= 0; i-- {
		bans = append(bans, db.bans[i])
	}
	return bans, nil
}
