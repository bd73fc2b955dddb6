// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
)

// ProfileStarter starts a stopped profile. The side-channel client
// implements it.
type ProfileStarter interface {
	StartProfile(ctx context.Context, profileID string) error
}

// CallWithRestart is Call, except that when the host reports the
// profile is not running it starts the profile through starter and
// issues the call one more time. The second outcome is final.
func (b *Bridge) CallWithRestart(ctx context.Context, starter ProfileStarter, profileID, method string, params, result any) error {
	err := b.Call(ctx, profileID, method, params, result)
	if err == nil || starter == nil || !IsProfileNotRunning(err) {
		return err
	}

	b.logger.Info("profile not running, starting it", "profile_id", profileID, "method", method)
	if startErr := starter.StartProfile(ctx, profileID); startErr != nil {
		return fmt.Errorf("bridge: starting profile %s: %w", profileID, errors.Join(startErr, err))
	}
	return b.Call(ctx, profileID, method, params, result)
}
