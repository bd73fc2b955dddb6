// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sidechannel

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response. Callers extract it with errors.As:
//
//	var apiError *sidechannel.APIError
//	if errors.As(err, &apiError) && apiError.StatusCode == http.StatusNotFound { ... }
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sidechannel: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == http.StatusNotFound
}
