package bridge

import (
	"context"
	"encoding/base64"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds reconnection tuning for the Postgres bridge.
type PostgresConfig struct {
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
}

// DefaultPostgresConfig returns default reconnection tuning.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  60 * time.Second,
	}
}

// Postgres is a Bridge over LISTEN/NOTIFY. Publish issues pg_notify on
// the shared pool; Subscribe holds one dedicated connection listening
// for notifications, re-acquired with exponential backoff when lost.
// NOTIFY payloads are text, so events travel base64-encoded.
type Postgres struct {
	cfg    PostgresConfig
	pool   *pgxpool.Pool
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[string][]func([]byte)
	wake     chan struct{}
	started  bool
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPostgres creates a Postgres bridge on an existing pool.
func NewPostgres(cfg PostgresConfig, pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = DefaultPostgresConfig().ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = DefaultPostgresConfig().ReconnectMaxDelay
	}
	return &Postgres{
		cfg:      cfg,
		pool:     pool,
		logger:   logger,
		handlers: make(map[string][]func([]byte)),
		wake:     make(chan struct{}, 1),
	}
}

// Publish sends the payload via pg_notify.
func (p *Postgres) Publish(ctx context.Context, channel string, payload []byte) error {
	encoded := base64.StdEncoding.EncodeToString(payload)
	_, err := p.pool.Exec(ctx, "select pg_notify($1, $2)", channel, encoded)
	return err
}

// Subscribe registers a handler and ensures the listen loop covers the
// channel. The loop starts on the first subscription.
func (p *Postgres) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	p.handlers[channel] = append(p.handlers[channel], handler)

	if !p.started {
		p.started = true
		p.ctx, p.cancel = context.WithCancel(context.Background())
		p.wg.Add(1)
		go p.listenLoop()
	} else {
		// Nudge the loop to re-LISTEN with the new channel set.
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

// Close stops the listen loop and drops all handlers.
func (p *Postgres) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	p.handlers = make(map[string][]func([]byte))
	p.mu.Unlock()
	return nil
}

// listenLoop holds the dedicated listening connection, reconnecting
// with exponential backoff. A lost backplane only costs cross-instance
// reach, so failures are logged at warning level and retried.
func (p *Postgres) listenLoop() {
	defer p.wg.Done()

	delay := p.cfg.ReconnectBaseDelay
	for {
		if p.ctx.Err() != nil {
			return
		}

		err := p.listenOnce()
		if p.ctx.Err() != nil {
			return
		}
		if err != nil {
			p.logger.Warn("backplane listen connection lost, degraded to single-instance scope",
				"error", err,
				"retry_in", delay,
			)
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > p.cfg.ReconnectMaxDelay {
				delay = p.cfg.ReconnectMaxDelay
			}
			continue
		}
		// Clean return means the channel set changed; reconnect now.
		delay = p.cfg.ReconnectBaseDelay
	}
}

// listenOnce acquires a connection, issues LISTEN for every subscribed
// channel, and dispatches notifications until the connection fails or
// the channel set changes.
func (p *Postgres) listenOnce() error {
	conn, err := p.pool.Acquire(p.ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, channel := range p.channels() {
		ident := pgx.Identifier{channel}.Sanitize()
		if _, err := conn.Exec(p.ctx, "listen "+ident); err != nil {
			return err
		}
	}

	p.logger.Info("backplane listening", "channels", len(p.channels()))

	waitCtx, cancelWait := context.WithCancel(p.ctx)
	defer cancelWait()
	go func() {
		select {
		case <-p.wake:
			cancelWait()
		case <-waitCtx.Done():
		}
	}()

	for {
		n, err := conn.Conn().WaitForNotification(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil && p.ctx.Err() == nil {
				return nil // woken for a channel-set change
			}
			return err
		}
		p.dispatch(n.Channel, n.Payload)
	}
}

func (p *Postgres) channels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.handlers))
	for ch := range p.handlers {
		out = append(out, ch)
	}
	return out
}

func (p *Postgres) dispatch(channel, payload string) {
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		p.logger.Warn("dropping malformed backplane payload", "channel", channel, "error", err)
		return
	}

	p.mu.Lock()
	handlers := make([]func([]byte), len(p.handlers[channel]))
	copy(handlers, p.handlers[channel])
	p.mu.Unlock()

	for _, h := range handlers {
		h(decoded)
	}
}
