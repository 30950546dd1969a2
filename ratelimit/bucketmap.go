package ratelimit

import (
	"sync"
	"time"
)

const cleanupInterval = 10 * 60 // seconds

// BucketMap keeps one bucket per client key, e.g. per IP address
type BucketMap struct {
	buckets     map[string]*Bucket
	limits      Limits
	nextCleanup int64
	mutex       sync.Mutex
	now         func() int64
}

func NewBucketMap(limits Limits) *BucketMap {
	return &BucketMap{
		buckets: make(map[string]*Bucket),
		limits:  limits,
		now:     func() int64 { return time.Now().Unix() },
	}
}

// AddToken records a request from key and reports whether it is allowed
func (bm *BucketMap) AddToken(key string) bool {
	return bm.addToken(key, bm.now())
}

func (bm *BucketMap) addToken(key string, now int64) bool {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	if bm.buckets[key] == nil {
		bm.buckets[key] = &Bucket{lastDrained: now}
	}
	ok := bm.buckets[key].addToken(bm.limits, now)
	if bm.nextCleanup < now {
		bm.nextCleanup = now + cleanupInterval
		bm.cleanup(now)
	}
	return ok
}

// DrainTime is how many seconds key has to wait before its next request
func (bm *BucketMap) DrainTime(key string) int64 {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	if bucket := bm.buckets[key]; bucket != nil {
		return bucket.DrainTime(bm.limits)
	}
	return 0
}

func (bm *BucketMap) cleanup(now int64) {
	for k, b := range bm.buckets {
		if b.isEmpty(bm.limits, now) {
			delete(bm.buckets, k)
		}
	}
}
