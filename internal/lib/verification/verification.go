package verification

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	sl "lockify/internal/lib/logger"
	"lockify/internal/models"
)

const tokenBytes = 32

type Publisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

// NewToken returns a random hex token for email verification.
func NewToken() (string, error) {
	const op = "verification.NewToken"

	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return hex.EncodeToString(b), nil
}

func Link(baseURL, token string) string {
	return fmt.Sprintf("%s/verification?token=%s", strings.TrimRight(baseURL, "/"), url.QueryEscape(token))
}

// Dispatcher sends verification messages in the background. Close stops
// accepting new messages and blocks until every dispatched one has been
// handed to the publisher.
type Dispatcher struct {
	log     *slog.Logger
	pub     Publisher
	baseURL string
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(log *slog.Logger, pub Publisher, baseURL string, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		log:     log,
		pub:     pub,
		baseURL: baseURL,
		timeout: timeout,
	}
}

func (d *Dispatcher) Dispatch(email, token string) {
	const op = "verification.Dispatch"

	log := d.log.With(slog.String("op", op))

	msg := models.Message{
		Email:   email,
		Link:    Link(d.baseURL, token),
		Purpose: models.PurposeEmailVerification,
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		log.Warn("dispatcher closed, verification link not sent")

		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.pub.SendMessage(ctx, msg); err != nil {
			log.Error("failed to send verification link", sl.Err(err))
			return
		}

		log.Debug("verification link sent")
	}()
}

// Close is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
}

// LogPublisher writes messages to the log instead of delivering them.
type LogPublisher struct {
	Log *slog.Logger
}

func (p LogPublisher) SendMessage(_ context.Context, msg models.Message) error {
	p.Log.Info("verification message",
		slog.String("to", msg.Email),
		slog.String("link", msg.Link),
		slog.String("purpose", msg.Purpose),
	)

	return nil
}
