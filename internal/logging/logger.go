package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

const queueSize = 2048

type logger struct {
	once sync.Once
	ch   chan string
}

var (
	global  logger
	rlMu    sync.Mutex
	rlLast  = make(map[string]time.Time)
	rlSweep = time.Now()
)

func enabled() bool {
	return os.Getenv("LSNP_VERBOSE") == "1"
}

func (l *logger) start() {
	l.once.Do(func() {
		l.ch = make(chan string, queueSize)
		go func() {
			for msg := range l.ch {
				_, _ = os.Stderr.WriteString(msg)
			}
		}()
	})
}

// Logf always writes. When verbose mode is on it goes through the buffered
// writer and drops under saturation to keep the receive loop non-blocking.
func Logf(format string, args ...any) {
	msg := fmt.Sprintf(format+"\n", args...)
	if !enabled() {
		_, _ = os.Stderr.WriteString(msg)
		return
	}
	global.start()
	select {
	case global.ch <- msg:
	default:
	}
}

// Verbosef writes only when LSNP_VERBOSE=1. tag is the protocol-style prefix
// ("RECV <", "SEND >", "DROP!", ...).
func Verbosef(tag, format string, args ...any) {
	if !enabled() {
		return
	}
	Logf("%s %s", tag, fmt.Sprintf(format, args...))
}

// Wire logs a full wire message with direction, timestamp, and remote ip,
// one KEY: VALUE per line.
func Wire(direction, ip, raw string) {
	if !enabled() {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	Logf("%s [%s] (%s)\n%s", direction, ts, ip, strings.TrimRight(raw, "\n"))
}

// RateLimitedf suppresses repeats of the same key within interval.
func RateLimitedf(key string, interval time.Duration, format string, args ...any) {
	if !enabled() || key == "" {
		return
	}
	if !allow(key, interval, time.Now()) {
		return
	}
	Logf(format, args...)
}

// allow reports whether key may emit again at now, recording the emission.
// Stale keys are swept opportunistically so the map stays bounded.
func allow(key string, interval time.Duration, now time.Time) bool {
	rlMu.Lock()
	defer rlMu.Unlock()
	if now.Sub(rlLast[key]) < interval {
		return false
	}
	rlLast[key] = now
	if now.Sub(rlSweep) > 2*interval {
		for k, ts := range rlLast {
			if now.Sub(ts) > 4*interval {
				delete(rlLast, k)
			}
		}
		rlSweep = now
	}
	return true
}
