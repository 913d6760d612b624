// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

// Package mail delivers activation PINs. Async queues messages for a
// background worker so registration never waits on a mail server; a Sender
// performs the actual delivery over SMTP or into the log.
package mail
