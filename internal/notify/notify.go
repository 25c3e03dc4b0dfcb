// Package notify handles alert delivery to the protected account by DM.
package notify

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/codeGROOVE-dev/warden/internal/format"
)

const (
	checkInterval  = 15 * time.Second
	alertTTL       = time.Hour        // Drop alerts that could not be delivered within an hour
	maxRetries     = 8                // Maximum retry attempts before giving up
	baseRetryDelay = 5 * time.Second  // Initial retry delay, doubles each attempt
	maxRetryDelay  = 10 * time.Minute // Retry delay cap
	maxQueued      = 200              // Oldest alerts are dropped beyond this
)

// AlertSender delivers an embed to a user by DM.
type AlertSender interface {
	SendAlert(ctx context.Context, userID string, embed *discordgo.MessageEmbed) error
}

type pendingAlert struct {
	sendAt     time.Time
	createdAt  time.Time
	alert      format.Alert
	id         string
	guildID    string
	retryCount int
}

// Manager queues alerts and delivers them with retry and backoff.
type Manager struct {
	sender    AlertSender
	logger    *slog.Logger
	now       func() time.Time
	queue     map[string]*pendingAlert
	wake      chan struct{}
	stopCh    chan struct{}
	recipient string
	mu        sync.Mutex
	wg        sync.WaitGroup
}

// New creates a new notification manager delivering to recipient.
func New(sender AlertSender, recipient string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		sender:    sender,
		recipient: recipient,
		logger:    logger,
		now:       time.Now,
		queue:     make(map[string]*pendingAlert),
		wake:      make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Alert queues an alert for delivery.
func (m *Manager) Alert(_ context.Context, guildID string, a format.Alert) {
	now := m.now()
	if a.At.IsZero() {
		a.At = now
	}

	m.mu.Lock()
	if len(m.queue) >= maxQueued {
		m.dropOldestLocked()
	}
	id := uuid.NewString()
	m.queue[id] = &pendingAlert{
		id:        id,
		guildID:   guildID,
		alert:     a,
		sendAt:    now,
		createdAt: now,
	}
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) dropOldestLocked() {
	var oldest *pendingAlert
	for _, p := range m.queue {
		if oldest == nil || p.createdAt.Before(oldest.createdAt) {
			oldest = p
		}
	}
	if oldest != nil {
		m.logger.Warn("alert queue full, dropping oldest alert",
			"guild_id", oldest.guildID,
			"title", oldest.alert.Title)
		delete(m.queue, oldest.id)
	}
}

// Pending returns the number of queued alerts.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Start begins the delivery loop.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Go(func() {
		m.run(ctx)
	})
}

// Stop stops the delivery loop.
func (m *Manager) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-m.wake:
			m.Flush(ctx)
		case <-ticker.C:
			m.Flush(ctx)
		}
	}
}

// due returns alerts ready to send, oldest first.
func (m *Manager) due(now time.Time) []*pendingAlert {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ready []*pendingAlert
	for _, p := range m.queue {
		if !p.sendAt.After(now) {
			ready = append(ready, p)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].createdAt.Before(ready[j].createdAt) })
	return ready
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.queue, id)
	m.mu.Unlock()
}

// Flush attempts delivery of every due alert.
func (m *Manager) Flush(ctx context.Context) {
	if m.recipient == "" {
		return
	}

	now := m.now()
	for _, p := range m.due(now) {
		// Check if alert has expired
		if now.Sub(p.createdAt) > alertTTL {
			m.logger.Warn("removing expired alert",
				"guild_id", p.guildID,
				"title", p.alert.Title,
				"created_at", p.createdAt)
			m.remove(p.id)
			continue
		}

		// Check if max retries exceeded
		if p.retryCount >= maxRetries {
			m.logger.Error("removing alert after max retries",
				"guild_id", p.guildID,
				"title", p.alert.Title,
				"retry_count", p.retryCount,
				"max_retries", maxRetries)
			m.remove(p.id)
			continue
		}

		if err := m.sender.SendAlert(ctx, m.recipient, format.Embed(p.alert)); err != nil {
			m.logger.Error("failed to send alert",
				"error", err,
				"guild_id", p.guildID,
				"title", p.alert.Title,
				"retry_count", p.retryCount)

			m.mu.Lock()
			p.retryCount++
			// Max exponent is 10 (2^10 * 5s = ~85 minutes) before the cap applies
			exponent := min(p.retryCount, 10)
			retryDelay := min(baseRetryDelay*time.Duration(1<<exponent), maxRetryDelay)
			p.sendAt = now.Add(retryDelay)
			m.mu.Unlock()

			m.logger.Info("scheduled alert retry with exponential backoff",
				"guild_id", p.guildID,
				"retry_count", p.retryCount,
				"next_attempt", p.sendAt,
				"delay", retryDelay)
			continue
		}

		m.remove(p.id)
		m.logger.Info("sent alert",
			"guild_id", p.guildID,
			"recipient", m.recipient,
			"title", p.alert.Title)
	}
}
