// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RetryPolicy is the one retry/backoff configuration shared by every remote
// call site. Delays are linear: Delay, 2*Delay, 3*Delay, …
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// StatusError reports a non-2xx response that survived all retries.
type StatusError struct {
	StatusCode int
	Body       string // first bytes of the body, for the log
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether an error is worth another attempt. Network-level
// failures and 5xx/429 responses are transient; anything else (4xx, malformed
// payloads) will not improve with repetition.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}

	// Everything reaching here came from the transport.
	return true
}

// Do executes fn under the policy, sleeping the linear schedule between
// attempts, until fn succeeds, returns a non-retryable error, or attempts run
// out. Context cancellation stops the loop between attempts.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !Retryable(err) {
			return err
		}

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(p.Delay * time.Duration(attempt)):
		}
	}

	return fmt.Errorf("after %d attempts: %w", attempts, err)
}

// DrainStatusError converts a non-2xx response into a *StatusError with a
// bounded body sample, closing the body.
func DrainStatusError(resp *http.Response) error {
	const sample = 200

	body, _ := io.ReadAll(io.LimitReader(resp.Body, sample))
	_ = resp.Body.Close()

	return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
}
