package upload

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedService returns one canned status per call, repeating the last
// entry once the script runs out.
type scriptedService struct {
	script []StatusResult
	err    error
	calls  int
}

func (s *scriptedService) Initiate(context.Context, InitiateRequest) (Initiated, error) {
	return Initiated{UploadID: "u1"}, nil
}

func (s *scriptedService) Status(context.Context, string) (StatusResult, error) {
	s.calls++
	if s.err != nil {
		return StatusResult{}, s.err
	}
	i := s.calls - 1
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i], nil
}

func TestPoller_SettlesAfterRetries(t *testing.T) {
	svc := &scriptedService{script: []StatusResult{
		{UploadID: "u1", Status: StatusPending},
		{UploadID: "u1", Status: StatusScanning},
		{UploadID: "u1", Status: StatusReady, Filename: "a.pdf"},
	}}
	p := NewPoller(svc, time.Millisecond, 5)

	result, err := p.Wait(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, result.Status)
	assert.Equal(t, 3, svc.calls)
}

func TestPoller_RejectedIsSettled(t *testing.T) {
	svc := &scriptedService{script: []StatusResult{
		{UploadID: "u1", Status: StatusRejected, Detail: "virus found"},
	}}
	p := NewPoller(svc, time.Millisecond, 5)

	result, err := p.Wait(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, result.Status)
}

func TestPoller_TimesOutAtAttemptCap(t *testing.T) {
	svc := &scriptedService{script: []StatusResult{
		{UploadID: "u1", Status: StatusScanning},
	}}
	p := NewPoller(svc, time.Millisecond, 5)

	_, err := p.Wait(context.Background(), "u1")
	require.ErrorIs(t, err, ErrUploadTimeout)
	assert.Equal(t, 5, svc.calls)
}

func TestPoller_EmptyStatusIsFatalImmediately(t *testing.T) {
	svc := &scriptedService{script: []StatusResult{{UploadID: "u1"}}}
	p := NewPoller(svc, time.Millisecond, 5)

	_, err := p.Wait(context.Background(), "u1")
	require.ErrorIs(t, err, ErrEmptyStatus)
	assert.Equal(t, 1, svc.calls)
}

func TestPoller_ServiceErrorStopsPolling(t *testing.T) {
	boom := errors.New("scan service down")
	svc := &scriptedService{err: boom}
	p := NewPoller(svc, time.Millisecond, 5)

	_, err := p.Wait(context.Background(), "u1")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, svc.calls)
}

func TestPoller_ContextCancelStopsRetries(t *testing.T) {
	svc := &scriptedService{script: []StatusResult{
		{UploadID: "u1", Status: StatusScanning},
	}}
	p := NewPoller(svc, time.Hour, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Wait(ctx, "u1")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, svc.calls)
}

func TestPoller_WatchObservesEveryStatus(t *testing.T) {
	svc := &scriptedService{script: []StatusResult{
		{UploadID: "u1", Status: StatusPending},
		{UploadID: "u1", Status: StatusScanning},
		{UploadID: "u1", Status: StatusReady, Filename: "a.pdf"},
	}}
	p := NewPoller(svc, time.Millisecond, 5)

	var seen []string
	result, err := p.Watch(context.Background(), "u1", func(res StatusResult) {
		seen = append(seen, res.Status)
	})
	require.NoError(t, err)
	assert.Equal(t, StatusReady, result.Status)
	assert.Equal(t, []string{StatusPending, StatusScanning, StatusReady}, seen)
}

func TestPoller_WatchKeepsTheTimeoutPolicy(t *testing.T) {
	svc := &scriptedService{script: []StatusResult{
		{UploadID: "u1", Status: StatusScanning},
	}}
	p := NewPoller(svc, time.Millisecond, 5)

	calls := 0
	_, err := p.Watch(context.Background(), "u1", func(StatusResult) { calls++ })
	require.ErrorIs(t, err, ErrUploadTimeout)
	assert.Equal(t, 5, calls)
	assert.Equal(t, 5, svc.calls)
}

func TestPoller_ZeroConfigDefaults(t *testing.T) {
	p := NewPoller(nil, 0, 0)
	assert.Equal(t, 250*time.Millisecond, p.base)
	assert.Equal(t, 5, p.attempts)
}
