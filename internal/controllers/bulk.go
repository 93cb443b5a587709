package controllers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/unmonitarr/internal/metrics"
	"github.com/amaumene/unmonitarr/internal/services/jellyfin"
	"github.com/sirupsen/logrus"
)

// Bulk sync kinds
const (
	BulkSyncAll    = "all"
	BulkSyncMovies = "movies"
	BulkSyncSeries = "series"
)

const (
	bulkPauseEvery  = 10
	maxStatusErrors = 5
)

var (
	ErrBulkSyncRunning = errors.New("bulk sync already running")
	ErrBulkSyncKind    = errors.New("unknown bulk sync type")
)

// BulkSyncStatus is a snapshot of the current or last bulk run
type BulkSyncStatus struct {
	IsRunning   bool       `json:"is_running"`
	StartTime   *time.Time `json:"start_time"`
	Processed   int        `json:"processed"`
	Total       int        `json:"total"`
	Synced      int        `json:"synced"`
	Percentage  float64    `json:"percentage"`
	CurrentItem string     `json:"current_item"`
	Errors      []string   `json:"errors"`
	ErrorCount  int        `json:"error_count"`
	Completed   bool       `json:"completed"`
	Success     bool       `json:"success"`
	SyncType    string     `json:"sync_type"`
}

// BulkSyncController reconciles the whole library of the first Jellyfin user.
// Only one run may be active at a time.
type BulkSyncController struct {
	media    MediaServer
	pipeline *Pipeline
	pause    time.Duration
	logger   *logrus.Logger

	mu     sync.Mutex
	status BulkSyncStatus
}

// NewBulkSyncController creates a new bulk sync controller
func NewBulkSyncController(media MediaServer, pipeline *Pipeline, logger *logrus.Logger) *BulkSyncController {
	return &BulkSyncController{
		media:    media,
		pipeline: pipeline,
		pause:    time.Second,
		logger:   logger,
		status:   BulkSyncStatus{Errors: []string{}},
	}
}

// Start launches a run in the background
func (c *BulkSyncController) Start(ctx context.Context, kind string) error {
	if err := c.begin(kind); err != nil {
		return err
	}
	go c.run(context.WithoutCancel(ctx), kind)
	return nil
}

// Run performs a run and waits for it to finish
func (c *BulkSyncController) Run(ctx context.Context, kind string) (BulkSyncStatus, error) {
	if err := c.begin(kind); err != nil {
		return BulkSyncStatus{}, err
	}
	c.run(ctx, kind)
	return c.Status(), nil
}

// Status returns a snapshot of the current or last run
func (c *BulkSyncController) Status() BulkSyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := c.status
	errs := c.status.Errors
	if len(errs) > maxStatusErrors {
		errs = errs[len(errs)-maxStatusErrors:]
	}
	snapshot.Errors = append([]string{}, errs...)
	snapshot.ErrorCount = len(c.status.Errors)
	if snapshot.Total > 0 {
		snapshot.Percentage = float64(snapshot.Processed) / float64(snapshot.Total) * 100
	}
	return snapshot
}

func itemTypes(kind string) ([]string, error) {
	switch kind {
	case BulkSyncAll, "":
		return []string{"Movie", "Episode"}, nil
	case BulkSyncMovies:
		return []string{"Movie"}, nil
	case BulkSyncSeries:
		return []string{"Episode"}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrBulkSyncKind, kind)
	}
}

func (c *BulkSyncController) begin(kind string) error {
	if _, err := itemTypes(kind); err != nil {
		return err
	}
	if kind == "" {
		kind = BulkSyncAll
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.IsRunning {
		return ErrBulkSyncRunning
	}

	now := time.Now()
	c.status = BulkSyncStatus{
		IsRunning: true,
		StartTime: &now,
		Errors:    []string{},
		SyncType:  kind,
	}
	metrics.BulkSyncRunning.Set(1)
	return nil
}

func (c *BulkSyncController) run(ctx context.Context, kind string) {
	types, _ := itemTypes(kind)
	logger := c.logger.WithField("sync_type", kind)
	logger.Info("Starting bulk sync")

	err := c.walk(ctx, types)

	c.mu.Lock()
	c.status.IsRunning = false
	c.status.Completed = true
	c.status.Success = err == nil
	c.status.CurrentItem = ""
	if err != nil {
		c.status.Errors = append(c.status.Errors, err.Error())
	}
	processed, synced := c.status.Processed, c.status.Synced
	c.mu.Unlock()
	metrics.BulkSyncRunning.Set(0)

	entry := logger.WithFields(logrus.Fields{
		"processed": processed,
		"synced":    synced,
	})
	if err != nil {
		entry.WithError(err).Error("Bulk sync failed")
		return
	}
	entry.Info("Bulk sync finished")
}

func (c *BulkSyncController) walk(ctx context.Context, types []string) error {
	users, err := c.media.GetUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return errors.New("no Jellyfin users found")
	}
	userID := users[0].ID

	return c.media.ListItems(ctx, userID, types, func(items []jellyfin.Item, total int) error {
		c.mu.Lock()
		c.status.Total = total
		c.mu.Unlock()

		for i := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.syncItem(ctx, &items[i], userID)

			c.mu.Lock()
			processed := c.status.Processed
			c.mu.Unlock()

			if processed%bulkPauseEvery == 0 && c.pause > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(c.pause):
				}
			}
		}
		return nil
	})
}

func (c *BulkSyncController) syncItem(ctx context.Context, item *jellyfin.Item, userID string) {
	ev := item.WatchEvent(userID)

	c.mu.Lock()
	c.status.CurrentItem = item.Name
	c.mu.Unlock()

	var failure string
	synced := false
	if !ev.WatchedKnown {
		failure = fmt.Sprintf("%s: no user data", item.Name)
	} else {
		outcome, err := c.pipeline.ProcessEvent(ctx, ev, ProcessOptions{Force: true, SkipSettle: true})
		switch {
		case err != nil:
			failure = fmt.Sprintf("%s: %v", item.Name, err)
		case outcome.Status == OutcomeCompleted:
			synced = true
		case outcome.Status == OutcomeFailed:
			failure = fmt.Sprintf("%s: %s", item.Name, outcome.Reason)
		}
	}

	c.mu.Lock()
	c.status.Processed++
	if synced {
		c.status.Synced++
	}
	if failure != "" {
		c.status.Errors = append(c.status.Errors, failure)
	}
	c.mu.Unlock()

	if failure != "" {
		metrics.BulkSyncItems.WithLabelValues("error").Inc()
		c.logger.WithField("item", item.Name).Warn(failure)
		return
	}
	metrics.BulkSyncItems.WithLabelValues("synced").Inc()
}
