// Package alert periodically turns stock levels and expiry dates into
// per-house notifications.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/stockhome/internal/changefeed"
	"github.com/dukerupert/stockhome/internal/locale"
	"github.com/dukerupert/stockhome/internal/metrics"
	"github.com/dukerupert/stockhome/internal/model"
	"github.com/dukerupert/stockhome/internal/stock"
	"github.com/dukerupert/stockhome/internal/store"
)

const (
	DefaultInterval         = time.Hour
	DefaultExpiryWindowDays = 3
)

type Options struct {
	Interval         time.Duration
	ExpiryWindowDays int
}

// Scheduler checks every house on a fixed interval.
type Scheduler struct {
	mu            sync.RWMutex
	houses        *store.HouseStore
	items         *store.ItemStore
	notifications *store.NotificationStore
	sessions      *store.SessionStore
	feed          *changefeed.Feed
	metrics       *metrics.Metrics
	logger        *slog.Logger
	interval      time.Duration
	expiryWindow  int
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewScheduler creates an alert scheduler. feed, m and sessions may be nil.
func NewScheduler(houses *store.HouseStore, items *store.ItemStore, notifications *store.NotificationStore,
	sessions *store.SessionStore, feed *changefeed.Feed, m *metrics.Metrics, logger *slog.Logger, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ExpiryWindowDays < 0 {
		opts.ExpiryWindowDays = DefaultExpiryWindowDays
	}
	return &Scheduler{
		houses:        houses,
		items:         items,
		notifications: notifications,
		sessions:      sessions,
		feed:          feed,
		metrics:       m,
		logger:        logger.With("component", "alert"),
		interval:      opts.Interval,
		expiryWindow:  opts.ExpiryWindowDays,
	}
}

// Start runs one check immediately and then one per interval until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.tick(time.Now().UTC())
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				s.tick(t.UTC())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(now time.Time) {
	houseIDs, err := s.houses.ListIDs()
	if err != nil {
		s.logger.Error("list houses", "error", err)
		return
	}

	created := 0
	for _, id := range houseIDs {
		n, err := s.CheckHouse(id, now)
		if err != nil {
			s.logger.Error("check house", "house_id", id, "error", err)
			continue
		}
		created += n
	}

	if s.metrics != nil {
		counts, err := s.items.CountByStatus()
		if err != nil {
			s.logger.Error("count items", "error", err)
		} else {
			s.metrics.SetItemCounts(counts)
		}
	}

	if s.sessions != nil {
		if n, err := s.sessions.DeleteExpired(); err != nil {
			s.logger.Error("delete expired sessions", "error", err)
		} else if n > 0 {
			s.logger.Info("deleted expired sessions", "count", n)
		}
	}

	s.logger.Debug("alert check done", "houses", len(houseIDs), "created", created)
}

// CheckHouse records today's stock and expiry notifications for one house
// and returns how many were new. Repeated checks on the same day create
// nothing.
func (s *Scheduler) CheckHouse(houseID int64, now time.Time) (int, error) {
	restock, err := s.items.NeedingRestock(houseID)
	if err != nil {
		return 0, fmt.Errorf("list restock items: %w", err)
	}

	created := 0
	for _, item := range restock {
		kind, msg := stockMessage(item)
		ok, err := s.notify(houseID, item.ID, kind, msg, now)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}

	horizon := now.AddDate(0, 0, s.expiryWindow)
	expiring, err := s.items.ExpiringBy(houseID, horizon)
	if err != nil {
		return created, fmt.Errorf("list expiring items: %w", err)
	}
	for _, item := range expiring {
		ok, err := s.notify(houseID, item.ID, model.NotifyExpiring, expiryMessage(item, now), now)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func (s *Scheduler) notify(houseID, itemID int64, kind, msg string, now time.Time) (bool, error) {
	n, err := s.notifications.Create(houseID, itemID, kind, msg, now)
	if err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}
	if n == nil {
		return false, nil
	}
	s.feed.Publish(changefeed.NewChange("notifications", changefeed.ActionCreated, houseID, n.ID, n))
	if s.metrics != nil {
		s.metrics.AlertCreated(kind)
	}
	return true, nil
}

func stockMessage(item model.Item) (kind, msg string) {
	if item.Status == stock.StatusEmpty {
		return model.NotifyOutOfStock, fmt.Sprintf("Stok %s habis. Segera beli lagi.", item.Name)
	}
	return model.NotifyLowStock, fmt.Sprintf("Stok %s hampir habis: tersisa %s (batas %s).",
		item.Name, locale.Quantity(item.Quantity, item.Unit), locale.Quantity(item.Threshold, item.Unit))
}

func expiryMessage(item model.Item, now time.Time) string {
	exp := *item.ExpiresAt
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if exp.Before(today) {
		return fmt.Sprintf("%s sudah kedaluwarsa sejak %s.", item.Name, locale.Date(exp))
	}
	return fmt.Sprintf("%s akan kedaluwarsa pada %s.", item.Name, locale.Date(exp))
}
