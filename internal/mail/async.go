// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/labyrinth-game/labyrinth/internal/auth"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// DropRecorder counts messages that were never delivered.
type DropRecorder interface {
	RecordMailDropped(reason string)
}

// Drop reasons reported to a DropRecorder.
const (
	DropQueueFull  = "queue_full"
	DropSendFailed = "send_failed"
)

type noopDropRecorder struct{}

func (noopDropRecorder) RecordMailDropped(string) {}

// AsyncOptions tune an Async mailer.
type AsyncOptions struct {
	QueueSize   int
	SendTimeout time.Duration
	Retry       errutil.RetryPolicy
	Logger      *slog.Logger
	Recorder    DropRecorder
}

// Async implements auth.Mailer with a bounded queue drained by a single
// worker goroutine.
type Async struct {
	sender   Sender
	queue    chan auth.ActivationMessage
	timeout  time.Duration
	retry    errutil.RetryPolicy
	logger   *slog.Logger
	recorder DropRecorder

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts the worker. Call Close to stop it.
func NewAsync(sender Sender, opts AsyncOptions) *Async {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = errutil.DefaultRetryPolicy
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = noopDropRecorder{}
	}
	a := &Async{
		sender:   sender,
		queue:    make(chan auth.ActivationMessage, opts.QueueSize),
		timeout:  opts.SendTimeout,
		retry:    opts.Retry,
		logger:   opts.Logger,
		recorder: opts.Recorder,
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

// SendActivation queues msg without blocking. It fails when the queue is
// full or the mailer is closed.
func (a *Async) SendActivation(_ context.Context, msg auth.ActivationMessage) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return errutil.Transient(CodeClosed).Errorf("mailer is closed")
	}
	select {
	case a.queue <- msg:
		return nil
	default:
		a.recorder.RecordMailDropped(DropQueueFull)
		return errutil.Transient(CodeQueueFull).With("username", msg.Username).Errorf("mail queue is full")
	}
}

// Close stops accepting messages and waits until queued ones are sent or
// ctx ends.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // caller's own context
	}
}

func (a *Async) run() {
	defer close(a.done)
	for msg := range a.queue {
		a.deliver(msg)
	}
}

func (a *Async) deliver(msg auth.ActivationMessage) {
	err := errutil.Retry(context.Background(), a.retry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return a.sender.Send(ctx, msg)
	})
	if err != nil {
		a.recorder.RecordMailDropped(DropSendFailed)
		errutil.LogError(a.logger, "activation mail failed", err, "username", msg.Username)
		return
	}
	a.logger.Debug("activation mail sent", "username", msg.Username)
}

// Compile-time interface check.
var _ auth.Mailer = (*Async)(nil)
