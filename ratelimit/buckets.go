package ratelimit

// Limits describe how fast a bucket fills up and drains
type Limits struct {
	BurstDuration     int64 // seconds
	MaxTokensPerBurst int64
	PenaltyTimeLimit  int64 // seconds
}

var DefaultLimits = Limits{
	BurstDuration:     10,
	MaxTokensPerBurst: 20,
	PenaltyTimeLimit:  10 * 60,
}

// Bucket is a leaky token bucket. Each request adds a token; tokens drain
// at MaxTokensPerBurst per BurstDuration. Overflowing the bucket adds
// penalty tokens so persistent offenders stay blocked longer.
type Bucket struct {
	tokens      int64
	lastDrained int64 // unix time
}

// DrainTime is how many seconds until the bucket accepts tokens again
func (b *Bucket) DrainTime(limits Limits) int64 {
	t := (b.tokens - limits.MaxTokensPerBurst + 1) * limits.BurstDuration / limits.MaxTokensPerBurst
	if t < 0 {
		return 0
	}
	return t
}

func (b *Bucket) isEmpty(limits Limits, now int64) bool {
	b.drain(limits, now)
	return b.tokens == 0
}

func (b *Bucket) drain(limits Limits, now int64) {
	drain := (now - b.lastDrained) * limits.MaxTokensPerBurst / limits.BurstDuration
	if drain > 0 {
		b.tokens = b.tokens - drain
		if b.tokens < 0 {
			b.tokens = 0
		}
		b.lastDrained = now
	}
}

func (b *Bucket) addToken(limits Limits, now int64) bool {
	b.drain(limits, now)
	if b.tokens > limits.MaxTokensPerBurst {
		// Penalty tokens: progressively increase until penalty time limit is reached
		if b.tokens < limits.MaxTokensPerBurst*(limits.PenaltyTimeLimit/limits.BurstDuration) {
			b.tokens += b.tokens / 2
		}
	}

	b.tokens += 1
	return b.tokens <= limits.MaxTokensPerBurst
}
