package security

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for timing attack prevention
type TimingConfig struct {
	FloorMs  int // minimum total handling time in milliseconds
	JitterMs int // random jitter range in milliseconds
}

// TimingDelay pads response latency to a configured floor so that a failed
// token lookup is not distinguishable by speed from slower legitimate paths.
type TimingDelay struct {
	config TimingConfig
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// cryptoRandIntn returns a secure random number between 0 and max (exclusive)
// Uses crypto/rand instead of math/rand for security-sensitive operations
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return 0, err
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return int(randomValue % uint64(max)), nil
}

// target computes floor + jitter for one request.
func (td *TimingDelay) target() time.Duration {
	floor := time.Duration(td.config.FloorMs) * time.Millisecond
	var jitter time.Duration
	if td.config.JitterMs > 0 {
		if randomValue, err := cryptoRandIntn(td.config.JitterMs); err == nil {
			jitter = time.Duration(randomValue) * time.Millisecond
		}
	}
	return floor + jitter
}

// WaitFrom blocks until the elapsed time since startTime reaches the floor
// plus jitter. Only the calling goroutine sleeps; concurrent requests are not
// affected. The wait aborts early if the context is cancelled.
func (td *TimingDelay) WaitFrom(ctx context.Context, startTime time.Time) {
	elapsed := time.Since(startTime)
	target := td.target()
	if elapsed >= target {
		return
	}

	timer := time.NewTimer(target - elapsed)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
