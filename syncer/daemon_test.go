package syncer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/preflect/memsync/memory"
	"github.com/preflect/memsync/syncer"
)

func TestDaemon_FirstCycleIsImmediate(t *testing.T) {
	source := &fakeSource{records: map[string][]memory.Record{
		"Matt": records("Matt", "loves sushi"),
	}}
	index := &fakeIndex{users: []memory.UserStat{{UserID: "Matt", Records: 1}}}
	c := syncer.NewCoordinator(source, index, nil)
	d := syncer.NewDaemon(c, index, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	// With an hour-long interval any fetch must come from the immediate
	// first cycle.
	deadline := time.After(2 * time.Second)
	for source.fetchCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("first cycle did not run immediately")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestDaemon_TicksRepeatedly(t *testing.T) {
	source := &fakeSource{records: map[string][]memory.Record{
		"Matt": records("Matt", "loves sushi"),
	}}
	index := &fakeIndex{users: []memory.UserStat{{UserID: "Matt", Records: 1}}}
	c := syncer.NewCoordinator(source, index, nil)
	d := syncer.NewDaemon(c, index, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for source.fetchCount() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected repeated cycles, saw %d fetches", source.fetchCount())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestDaemon_RosterFallbackWhenIndexEmpty(t *testing.T) {
	source := &fakeSource{records: map[string][]memory.Record{
		"Alice": records("Alice", "loves sushi"),
		"Bob":   records("Bob", "plays guitar"),
	}}
	index := &fakeIndex{}
	c := syncer.NewCoordinator(source, index, nil)
	d := syncer.NewDaemon(c, index, time.Hour, []string{"Alice", "Bob"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for len(index.upsertedRecords()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("roster users not synced, have %d upserts", len(index.upsertedRecords()))
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestDaemon_RosterFallbackOnListError(t *testing.T) {
	source := &fakeSource{records: map[string][]memory.Record{
		"Matt": records("Matt", "loves sushi"),
	}}
	index := &fakeIndex{listErr: errors.New("index down")}
	c := syncer.NewCoordinator(source, index, nil)
	d := syncer.NewDaemon(c, index, time.Hour, []string{"Matt"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for source.fetchCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("list error must fall back to the roster")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestDaemon_DefaultRoster(t *testing.T) {
	if len(syncer.DefaultRoster) == 0 {
		t.Fatal("default roster must not be empty")
	}
}
