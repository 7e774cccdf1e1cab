// Package mailer delivers authentication mail. Production wiring plugs in a
// real provider; the log sender covers development and tests.
package mailer

import (
	"context"
	"log"
	"time"
)

// Sender delivers a magic sign-in link to an address.
type Sender interface {
	SendMagicLink(ctx context.Context, email, link string, expiresAt time.Time) error
}

// LogSender writes the link to the process log instead of sending mail.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) SendMagicLink(_ context.Context, email, link string, expiresAt time.Time) error {
	log.Printf("mailer: magic link for %s (expires %s): %s", email, expiresAt.Format(time.RFC3339), link)
	return nil
}
