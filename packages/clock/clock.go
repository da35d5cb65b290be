// Package clock supplies an NTP-corrected wall clock, used to stamp round
// durations independently of any single node's unsynchronized local clock.
package clock

import (
	"sync"
	"time"

	"github.com/beevik/ntp"
)

const defaultNTPServer = "pool.ntp.org"

var (
	once     sync.Once
	mu       sync.RWMutex
	offset   time.Duration
	resolved bool
)

// SyncedTime returns the local wall clock corrected by the offset last
// resolved against an NTP server. Until the first successful resolution
// (or if NTP is unreachable) it falls back to uncorrected local time.
func SyncedTime() time.Time {
	once.Do(func() { go refreshLoop(defaultNTPServer, time.Hour) })

	mu.RLock()
	defer mu.RUnlock()
	if !resolved {
		return time.Now()
	}
	return time.Now().Add(offset)
}

// Resync synchronously queries server and updates the offset used by
// SyncedTime. Callers that want a guaranteed-fresh offset (rather than the
// hourly background refresh) can call this explicitly, e.g. at startup.
func Resync(server string) error {
	resp, err := ntp.Query(server)
	if err != nil {
		return err
	}
	mu.Lock()
	offset = resp.ClockOffset
	resolved = true
	mu.Unlock()
	return nil
}

func refreshLoop(server string, interval time.Duration) {
	_ = Resync(server)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		_ = Resync(server)
	}
}
