// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used for call
// deadlines and queue timestamps.
//
// Production code holds a [Clock] and uses [Real]. Tests use [Fake],
// which only moves when Advance is called, so a 15-second call deadline
// can be fired deterministically:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	b := bridge.New(bridge.Config{Clock: fake, ...})
//	go b.Call(ctx, "profile-a", "thread/start", nil, nil)
//	fake.WaitForTimers(1)
//	fake.Advance(bridge.CallTimeout)
package clock
