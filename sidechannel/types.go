// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sidechannel

import "github.com/bureau-foundation/console/protocol"

// Profile is a profile as listed by the host.
type Profile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Running bool   `json:"running"`
	Model   string `json:"model,omitempty"`
	Cwd     string `json:"cwd,omitempty"`
}

// CreateProfileRequest is the body of CreateProfile.
type CreateProfileRequest struct {
	Name  string `json:"name"`
	Model string `json:"model,omitempty"`
	Cwd   string `json:"cwd,omitempty"`
}

// ProfileConfig is a profile's configuration file as stored by the
// host. Content is opaque to the console.
type ProfileConfig struct {
	Format  string `json:"format"`
	Content string `json:"content"`
}

// ThreadSummary is one search hit.
type ThreadSummary struct {
	ID        string `json:"id"`
	ProfileID string `json:"profileId"`
	Preview   string `json:"preview,omitempty"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
	Archived  bool   `json:"archived,omitempty"`
}

// ActiveThread is a thread the host remembers as open in the console.
type ActiveThread struct {
	ProfileID string `json:"profileId"`
	ThreadID  string `json:"threadId"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type profilesResponse struct {
	Profiles []Profile `json:"profiles"`
}

type resumeResponse struct {
	Thread protocol.Thread `json:"thread"`
}

type threadsResponse struct {
	Threads []ThreadSummary `json:"threads"`
}

type activeThreadsResponse struct {
	Threads []ActiveThread `json:"threads"`
}
