// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

// Package notify delivers rendered digests to users.
//
// The package exposes the Mailer interface consumed by the Dispatcher and
// an SMTP implementation. Failures are classified into transient errors
// (connection, timeout, rate limiting), which the dispatcher retries with
// bounded exponential backoff, and permanent errors (bad recipient,
// rejected message), which are logged and skipped so one user's failure
// never blocks delivery to the others.
package notify

import (
	"context"
	"fmt"
	"strings"
)

// Error codes for mail delivery failures.
const (
	ErrorCodeInvalidRecipient  = "INVALID_RECIPIENT"
	ErrorCodeConnectionFailed  = "CONNECTION_FAILED"
	ErrorCodeAuthFailed        = "AUTH_FAILED"
	ErrorCodeRateLimited       = "RATE_LIMITED"
	ErrorCodeRecipientNotFound = "RECIPIENT_NOT_FOUND"
	ErrorCodeTimeout           = "TIMEOUT"
	ErrorCodeCanceled          = "CANCELED"
	ErrorCodeUnknown           = "UNKNOWN"
)

// MailError is a classified delivery failure.
type MailError struct {
	// Code is one of the ErrorCode constants.
	Code string

	// Transient reports whether a retry may succeed.
	Transient bool

	Err error
}

func (e *MailError) Error() string {
	return fmt.Sprintf("mail delivery failed (%s): %v", e.Code, e.Err)
}

func (e *MailError) Unwrap() error { return e.Err }

// Mailer submits one rendered message to one recipient. Implementations
// return *MailError so the dispatcher can distinguish transient from
// permanent failures.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, htmlBody string) error
}

// ValidateEmail checks an email address for the minimal structure the
// mailer requires.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email address is required")
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid email address format: %s", email)
	}
	if !strings.Contains(parts[1], ".") {
		return fmt.Errorf("invalid email domain: %s", parts[1])
	}
	return nil
}

// classifySMTPError maps an SMTP failure onto an error code. SMTP errors
// arrive as free text, so classification is by substring.
func classifySMTPError(err error) (code string, transient bool) {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "authentication") || strings.Contains(errStr, "auth"):
		return ErrorCodeAuthFailed, false
	case strings.Contains(errStr, "recipient") || strings.Contains(errStr, "mailbox"):
		return ErrorCodeRecipientNotFound, false
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return ErrorCodeTimeout, true
	case strings.Contains(errStr, "connection") || strings.Contains(errStr, "connect"):
		return ErrorCodeConnectionFailed, true
	case strings.Contains(errStr, "rate") || strings.Contains(errStr, "limit"):
		return ErrorCodeRateLimited, true
	default:
		return ErrorCodeUnknown, false
	}
}
