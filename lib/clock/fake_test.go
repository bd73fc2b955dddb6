// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFuncFiresOnAdvance(t *testing.T) {
	fake := Fake(epoch)
	fired := 0
	fake.AfterFunc(15*time.Second, func() { fired++ })

	fake.Advance(14 * time.Second)
	if fired != 0 {
		t.Fatalf("fired before deadline: %d", fired)
	}
	fake.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	fake.Advance(time.Minute)
	if fired != 1 {
		t.Fatalf("fired again after deadline: %d", fired)
	}
}

func TestFakeAfterFuncStop(t *testing.T) {
	fake := Fake(epoch)
	fired := false
	timer := fake.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop on pending timer returned false")
	}
	if timer.Stop() {
		t.Fatal("second Stop returned true")
	}
	fake.Advance(time.Hour)
	if fired {
		t.Fatal("stopped timer fired")
	}
	if fake.PendingCount() != 0 {
		t.Fatalf("PendingCount = %d, want 0", fake.PendingCount())
	}
}

func TestFakeAfterFiresInDeadlineOrder(t *testing.T) {
	fake := Fake(epoch)
	var order []string
	fake.AfterFunc(3*time.Second, func() { order = append(order, "late") })
	fake.AfterFunc(time.Second, func() { order = append(order, "early") })
	channel := fake.After(2 * time.Second)

	fake.Advance(5 * time.Second)

	if len(order) != 2 || order[0] != "early" || order[1] != "late" {
		t.Fatalf("order = %v", order)
	}
	select {
	case got := <-channel:
		if !got.Equal(epoch.Add(5 * time.Second)) {
			t.Fatalf("After delivered %v", got)
		}
	default:
		t.Fatal("After channel not ready")
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	fake := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-fake.After(time.Second)
		close(done)
	}()
	fake.WaitForTimers(1)
	fake.Advance(time.Second)
	<-done
}
