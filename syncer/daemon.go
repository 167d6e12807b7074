package syncer

import (
	"context"
	"log"
	"time"

	"github.com/preflect/memsync/memory"
)

// DefaultRoster is used when neither the index nor configuration yields
// any users to sync.
var DefaultRoster = []string{"Matt", "Noa", "John"}

// Daemon runs periodic sync cycles in the background.
type Daemon struct {
	coordinator *Coordinator
	index       memory.Index
	interval    time.Duration
	roster      []string
}

// NewDaemon creates a background sync daemon. The roster is the static
// fallback user list used when the index knows no users yet; nil means
// DefaultRoster. An interval of zero or less defaults to one minute.
func NewDaemon(coordinator *Coordinator, index memory.Index, interval time.Duration, roster []string) *Daemon {
	if interval <= 0 {
		interval = time.Minute
	}
	if len(roster) == 0 {
		roster = DefaultRoster
	}
	return &Daemon{
		coordinator: coordinator,
		index:       index,
		interval:    interval,
		roster:      roster,
	}
}

// Run executes a sync cycle immediately, then on every tick until the
// context is cancelled.
func (d *Daemon) Run(ctx context.Context) {
	log.Printf("[SYNC] daemon started, interval %s", d.interval)
	d.cycle(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[SYNC] daemon stopped")
			return
		case <-ticker.C:
			d.cycle(ctx)
		}
	}
}

func (d *Daemon) cycle(ctx context.Context) {
	// A panicking collaborator must not take the daemon down; the next
	// tick retries.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SYNC] cycle panicked: %v", r)
		}
	}()

	users := d.users(ctx)
	if len(users) == 0 {
		return
	}
	start := time.Now()
	results := d.coordinator.SyncAll(ctx, users)

	var synced, errs int
	for _, res := range results {
		synced += res.Synced
		errs += res.Errors
	}
	log.Printf("[SYNC] cycle complete: %d users, %d synced, %d errors in %s",
		len(results), synced, errs, time.Since(start).Round(time.Millisecond))
}

// users prefers the index's known users and falls back to the static
// roster so a cold instance still pulls its first records.
func (d *Daemon) users(ctx context.Context) []string {
	stats, err := d.index.ListUsers(ctx)
	if err != nil {
		log.Printf("[SYNC] list users: %v", err)
		return d.roster
	}
	if len(stats) == 0 {
		return d.roster
	}
	ids := make([]string, 0, len(stats))
	for _, s := range stats {
		ids = append(ids, s.UserID)
	}
	return ids
}
