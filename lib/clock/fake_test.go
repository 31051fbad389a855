// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNowStandsStill(t *testing.T) {
	c := Fake(epoch)
	if !c.Now().Equal(epoch) {
		t.Fatalf("Now = %v, want %v", c.Now(), epoch)
	}
	c.Advance(time.Hour)
	if !c.Now().Equal(epoch.Add(time.Hour)) {
		t.Fatalf("Now = %v, want %v", c.Now(), epoch.Add(time.Hour))
	}
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	ch := c.After(10 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	c.Advance(10 * time.Second)
	select {
	case fired := <-ch:
		if !fired.Equal(epoch.Add(10 * time.Second)) {
			t.Errorf("fired at %v, want %v", fired, epoch.Add(10*time.Second))
		}
	default:
		t.Fatal("After did not fire after Advance")
	}
}

func TestFakeAfterNonPositiveFiresImmediately(t *testing.T) {
	c := Fake(epoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestFakeAfterFiresOnceOnOverlappingAdvances(t *testing.T) {
	c := Fake(epoch)
	ch := c.After(time.Second)
	c.Advance(2 * time.Second)
	c.Advance(2 * time.Second)

	<-ch
	select {
	case <-ch:
		t.Fatal("After fired twice")
	default:
	}
}

func TestFakeTickerRepeats(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Minute)
	defer ticker.Stop()

	// One Advance spanning several intervals fires repeatedly; the
	// channel has capacity 1, so drain between ticks.
	c.Advance(time.Minute)
	<-ticker.C
	c.Advance(time.Minute)
	<-ticker.C

	ticker.Stop()
	c.Advance(time.Hour)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker still fired")
	default:
	}
}

func TestFakeSleepBlocksUntilAdvance(t *testing.T) {
	c := Fake(epoch)

	var wg sync.WaitGroup
	woke := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Sleep(5 * time.Second)
		close(woke)
	}()

	c.WaitForTimers(1)
	select {
	case <-woke:
		t.Fatal("Sleep returned before Advance")
	default:
	}

	c.Advance(5 * time.Second)
	wg.Wait()
}

func TestFakeWaitersFireInDeadlineOrder(t *testing.T) {
	c := Fake(epoch)
	late := c.After(10 * time.Second)
	early := c.After(1 * time.Second)

	c.Advance(time.Minute)

	earlyAt := <-early
	lateAt := <-late
	if earlyAt.After(lateAt) {
		t.Errorf("early waiter fired at %v after late waiter at %v", earlyAt, lateAt)
	}
}
