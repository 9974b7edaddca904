package upload

import (
	"context"
	"fmt"
	"time"
)

// Poller waits for an upload to settle, retrying with exponential
// backoff. The retry budget is deliberately small and fixed: past the cap
// the poll fails fatally with ErrUploadTimeout rather than hanging the
// request.
type Poller struct {
	svc      Service
	base     time.Duration
	attempts int
}

// NewPoller builds a poller over svc. base is the first backoff delay
// (doubled each retry); attempts caps the number of status calls. Zero
// values fall back to 250ms and 5 attempts.
func NewPoller(svc Service, base time.Duration, attempts int) *Poller {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	if attempts <= 0 {
		attempts = 5
	}
	return &Poller{svc: svc, base: base, attempts: attempts}
}

// Wait polls until the upload settles, the attempt cap is hit, or the
// context ends. An empty status from the service is fatal immediately.
func (p *Poller) Wait(ctx context.Context, uploadID string) (StatusResult, error) {
	return p.Watch(ctx, uploadID, nil)
}

// Watch is Wait with an observer: fn (if non-nil) sees every non-empty
// status the service reports, settled or not, before Watch decides what
// to do with it. The retry policy is identical to Wait's.
func (p *Poller) Watch(ctx context.Context, uploadID string, fn func(StatusResult)) (StatusResult, error) {
	delay := p.base
	for attempt := 1; attempt <= p.attempts; attempt++ {
		result, err := p.svc.Status(ctx, uploadID)
		if err != nil {
			return StatusResult{}, err
		}
		if result.Status == "" {
			return StatusResult{}, fmt.Errorf("upload %s: %w", uploadID, ErrEmptyStatus)
		}
		if fn != nil {
			fn(result)
		}
		if result.Settled() {
			return result, nil
		}
		if attempt == p.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return StatusResult{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return StatusResult{}, fmt.Errorf("upload %s after %d attempts: %w", uploadID, p.attempts, ErrUploadTimeout)
}
