// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package mail_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/labyrinth-game/labyrinth/internal/auth"
	"github.com/labyrinth-game/labyrinth/internal/mail"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

type recordingSender struct {
	mu      sync.Mutex
	sent    []auth.ActivationMessage
	release chan struct{}
	fail    func(attempt int) error
	calls   int
}

func (s *recordingSender) Send(ctx context.Context, msg auth.ActivationMessage) error {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail != nil {
		if err := s.fail(s.calls); err != nil {
			return err
		}
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) Sent() []auth.ActivationMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]auth.ActivationMessage(nil), s.sent...)
}

type dropCounter struct {
	mu      sync.Mutex
	reasons []string
}

func (d *dropCounter) RecordMailDropped(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reasons = append(d.reasons, reason)
}

func (d *dropCounter) Reasons() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.reasons...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func msg(name string) auth.ActivationMessage {
	return auth.ActivationMessage{Username: name, Email: name + "@example.com", PIN: "123456"}
}

func TestAsync_DeliversQueuedMessagesBeforeClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &recordingSender{}
	a := mail.NewAsync(sender, mail.AsyncOptions{QueueSize: 4, Logger: quietLogger()})

	require.NoError(t, a.SendActivation(context.Background(), msg("alice")))
	require.NoError(t, a.SendActivation(context.Background(), msg("bob")))
	require.NoError(t, a.Close(context.Background()))

	sent := sender.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "alice", sent[0].Username)
	assert.Equal(t, "bob", sent[1].Username)
}

func TestAsync_FullQueueDrops(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &recordingSender{release: make(chan struct{})}
	drops := &dropCounter{}
	a := mail.NewAsync(sender, mail.AsyncOptions{QueueSize: 1, Logger: quietLogger(), Recorder: drops})

	// The worker holds the first message; the second fills the queue.
	require.NoError(t, a.SendActivation(context.Background(), msg("first")))
	require.Eventually(t, func() bool {
		return a.SendActivation(context.Background(), msg("second")) == nil
	}, time.Second, time.Millisecond)

	err := a.SendActivation(context.Background(), msg("third"))
	errutil.AssertErrorCode(t, err, mail.CodeQueueFull)
	assert.True(t, errutil.IsRetryable(err))
	assert.Contains(t, drops.Reasons(), mail.DropQueueFull)

	close(sender.release)
	require.NoError(t, a.Close(context.Background()))
	assert.Len(t, sender.Sent(), 2)
}

func TestAsync_RetriesTransientFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &recordingSender{fail: func(attempt int) error {
		if attempt == 1 {
			return errutil.Transient(mail.CodeUnavailable).Errorf("connection refused")
		}
		return nil
	}}
	a := mail.NewAsync(sender, mail.AsyncOptions{
		Logger: quietLogger(),
		Retry:  errutil.RetryPolicy{Base: time.Millisecond, MaxAttempts: 2},
	})

	require.NoError(t, a.SendActivation(context.Background(), msg("alice")))
	require.NoError(t, a.Close(context.Background()))
	assert.Len(t, sender.Sent(), 1)
}

func TestAsync_PermanentFailureIsRecorded(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &recordingSender{fail: func(int) error { return errors.New("mailbox unavailable") }}
	drops := &dropCounter{}
	a := mail.NewAsync(sender, mail.AsyncOptions{Logger: quietLogger(), Recorder: drops})

	require.NoError(t, a.SendActivation(context.Background(), msg("alice")))
	require.NoError(t, a.Close(context.Background()))

	assert.Empty(t, sender.Sent())
	assert.Equal(t, []string{mail.DropSendFailed}, drops.Reasons())
	sender.mu.Lock()
	assert.Equal(t, 1, sender.calls)
	sender.mu.Unlock()
}

func TestAsync_RejectsAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := mail.NewAsync(&recordingSender{}, mail.AsyncOptions{Logger: quietLogger()})
	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, a.Close(context.Background()))

	err := a.SendActivation(context.Background(), msg("late"))
	errutil.AssertErrorCode(t, err, mail.CodeClosed)
}

func TestAsync_CloseHonoursContext(t *testing.T) {
	sender := &recordingSender{release: make(chan struct{})}
	a := mail.NewAsync(sender, mail.AsyncOptions{Logger: quietLogger()})
	require.NoError(t, a.SendActivation(context.Background(), msg("stuck")))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Close(ctx), context.DeadlineExceeded)

	close(sender.release)
	require.NoError(t, a.Close(context.Background()))
}
