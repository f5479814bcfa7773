// Package notify publishes toolchain run events to NATS JetStream.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	ferrors "git.home.luguber.info/inful/bundlekit/internal/foundation/errors"
)

// Publisher sends one message to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Options configures a JetStream connection.
type Options struct {
	URL     string
	Stream  string
	Subject string // events go to Subject.<kind>...
	Timeout time.Duration
}

// Client manages the NATS connection used for run events.
type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// Connect dials NATS and makes sure the stream capturing Subject.> exists.
func Connect(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	conn, err := nats.Connect(opts.URL, nats.Name("bundlekit"), nats.Timeout(opts.Timeout))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNotify, "failed to connect to NATS").
			Retryable().WithContext("url", opts.URL).Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryNotify, "failed to create JetStream context").Build()
	}

	sctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(sctx, jetstream.StreamConfig{
		Name:        opts.Stream,
		Description: "bundlekit toolchain run events",
		Subjects:    []string{opts.Subject + ".>"},
		MaxAge:      7 * 24 * time.Hour,
	}); err != nil {
		conn.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryNotify, "failed to ensure stream").
			WithContext("stream", opts.Stream).Build()
	}

	logger.Info("NATS client initialized for run events",
		slog.String("url", opts.URL),
		slog.String("stream", opts.Stream),
		slog.String("subject", opts.Subject))
	return &Client{conn: conn, js: js, logger: logger}, nil
}

// Publish sends data to subject and waits for the stream acknowledgement.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Drain()
}
