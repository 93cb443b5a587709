package controllers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/amaumene/unmonitarr/internal/metrics"
	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/amaumene/unmonitarr/internal/services/jellyfin"
	"github.com/amaumene/unmonitarr/internal/tracing"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OutcomeStatus summarizes what the pipeline did with an event
type OutcomeStatus string

const (
	OutcomeIgnored   OutcomeStatus = "ignored"
	OutcomeDuplicate OutcomeStatus = "duplicate"
	OutcomeUnchanged OutcomeStatus = "unchanged"
	OutcomeNotFound  OutcomeStatus = "not_found"
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome is the result of processing one event
type Outcome struct {
	Status      OutcomeStatus
	Reason      string
	MediaItemID uint64
	SyncLogID   uint64
	Tier        Tier
}

// ProcessOptions alters how an event goes through the pipeline
type ProcessOptions struct {
	Force      bool   // sync even when the watched flag did not change
	RetryLogID uint64 // sync log to reuse
	SkipSettle bool   // skip the settle delay, for retries and bulk runs
}

// Pipeline runs watch events through dedup, recording, resolution and sync
type Pipeline struct {
	db       *models.Database
	dedup    *DedupCache
	media    MediaServer
	executor *SyncExecutor
	tracer   trace.Tracer
	logger   *logrus.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPipeline creates a new sync pipeline
func NewPipeline(db *models.Database, dedup *DedupCache, media MediaServer, executor *SyncExecutor, logger *logrus.Logger) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		db:       db,
		dedup:    dedup,
		media:    media,
		executor: executor,
		tracer:   tracing.Tracer("unmonitarr/pipeline"),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ProcessPayload normalizes a raw webhook body and processes the resulting event
func (p *Pipeline) ProcessPayload(ctx context.Context, payload map[string]interface{}, opts ProcessOptions) (*Outcome, error) {
	ev, err := jellyfin.NormalizePayload(payload)
	if err != nil {
		if errors.Is(err, jellyfin.ErrNotRelevant) {
			return p.done(&Outcome{Status: OutcomeIgnored, Reason: err.Error()}), nil
		}
		return nil, err
	}
	return p.ProcessEvent(ctx, ev, opts)
}

// ProcessEvent runs one event through the pipeline synchronously
func (p *Pipeline) ProcessEvent(ctx context.Context, ev *models.WatchEvent, opts ProcessOptions) (*Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.process", trace.WithAttributes(
		attribute.String("item_id", ev.ItemID),
		attribute.String("user_id", ev.UserID),
		attribute.String("media_type", string(ev.MediaType)),
		attribute.String("watched", ev.WatchedLabel()),
		attribute.Bool("force", opts.Force),
	))
	defer span.End()

	outcome, err := p.process(ctx, ev, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("outcome", string(outcome.Status)),
		attribute.String("tier", string(outcome.Tier)),
	)
	return p.done(outcome), nil
}

func (p *Pipeline) process(ctx context.Context, ev *models.WatchEvent, opts ProcessOptions) (*Outcome, error) {
	logger := p.logger.WithFields(logrus.Fields{
		"item_id": ev.ItemID,
		"user_id": ev.UserID,
		"title":   ev.Title,
		"watched": ev.WatchedLabel(),
	})

	// Step 1: Dedup gate
	key := DedupKey(ev)
	if !p.dedup.Acquire(key) {
		logger.Debug("Duplicate event in flight, dropping")
		if opts.RetryLogID != 0 {
			p.recordFailure(ev, nil, opts.RetryLogID, errors.New("identical event already in progress"))
		}
		return &Outcome{Status: OutcomeDuplicate, Reason: "identical event already in progress"}, nil
	}
	defer p.dedup.Release(key)

	// Step 2: Let webhook bursts settle
	if !opts.SkipSettle {
		if err := p.dedup.Settle(ctx); err != nil {
			return nil, err
		}
	}

	// Step 3: Fill in the watched flag for payloads that did not carry it
	if !ev.WatchedKnown {
		item, err := p.media.GetItem(ctx, ev.ItemID, ev.UserID)
		if err != nil {
			logger.WithError(err).Error("Failed to fetch item from Jellyfin")
			logID := p.recordFailure(ev, nil, opts.RetryLogID, err)
			return &Outcome{Status: OutcomeFailed, Reason: err.Error(), SyncLogID: logID}, nil
		}
		if item == nil {
			return &Outcome{Status: OutcomeNotFound, Reason: "item not found in Jellyfin"}, nil
		}
		item.Merge(ev)
		if !ev.WatchedKnown {
			return &Outcome{Status: OutcomeIgnored, Reason: "watched status unknown"}, nil
		}
	}

	// Step 4: Load or create the media item
	item, created, err := p.db.GetOrCreateMediaItem(ev)
	if err != nil {
		logger.WithError(err).Error("Failed to record media item")
		logID := p.recordFailure(ev, nil, opts.RetryLogID, err)
		return &Outcome{Status: OutcomeFailed, Reason: err.Error(), SyncLogID: logID}, nil
	}

	// Step 5: Compare with the stored flag
	if item.IsWatched == ev.Watched && !opts.Force {
		logger.WithField("created", created).Debug("Watched status unchanged")
		return &Outcome{Status: OutcomeUnchanged, MediaItemID: item.ID}, nil
	}

	item.IsWatched = ev.Watched
	if err := p.db.UpdateMediaItem(item); err != nil {
		logger.WithError(err).Error("Failed to update media item")
		logID := p.recordFailure(ev, &item.ID, opts.RetryLogID, err)
		return &Outcome{Status: OutcomeFailed, Reason: err.Error(), MediaItemID: item.ID, SyncLogID: logID}, nil
	}

	// Step 6: Resolve and apply
	log, tier, err := p.executor.Sync(ctx, item, RequestFor(item, ev), opts.RetryLogID)
	if err != nil {
		return nil, fmt.Errorf("failed to record sync of %s: %w", item.JellyfinID, err)
	}
	if log == nil {
		return &Outcome{Status: OutcomeNotFound, Reason: "no matching entity", MediaItemID: item.ID, Tier: tier}, nil
	}

	outcome := &Outcome{
		Status:      OutcomeCompleted,
		MediaItemID: item.ID,
		SyncLogID:   log.ID,
		Tier:        tier,
	}
	if log.Status == models.SyncStatusFailed {
		outcome.Status = OutcomeFailed
		outcome.Reason = log.ErrorMessage
	}
	return outcome, nil
}

// recordFailure stores a failed sync log for an event that could not be processed.
// It returns the log id, or zero if even that failed.
func (p *Pipeline) recordFailure(ev *models.WatchEvent, mediaItemID *uint64, retryLogID uint64, cause error) uint64 {
	if retryLogID != 0 {
		if log, err := p.db.GetSyncLog(retryLogID); err == nil {
			log.Status = models.SyncStatusFailed
			log.ErrorMessage = cause.Error()
			if err := p.db.UpdateSyncLog(log); err != nil {
				p.logger.WithError(err).Error("Failed to update sync log")
				return 0
			}
			return log.ID
		}
	}

	seriesName := ev.SeriesName
	if seriesName == "" {
		seriesName = ev.Title
	}
	log := &models.SyncLog{
		MediaItemID:  mediaItemID,
		SeriesName:   seriesName,
		Action:       models.ActionFor(!ev.Watched),
		Status:       models.SyncStatusFailed,
		Service:      ev.MediaType.Service(),
		ErrorMessage: cause.Error(),
	}
	if err := p.db.CreateSyncLog(log); err != nil {
		p.logger.WithError(err).Error("Failed to create sync log")
		return 0
	}
	return log.ID
}

func (p *Pipeline) done(outcome *Outcome) *Outcome {
	metrics.PipelineOutcomes.WithLabelValues(string(outcome.Status)).Inc()
	return outcome
}

// Enqueue processes ev in the background
func (p *Pipeline) Enqueue(ev *models.WatchEvent, opts ProcessOptions) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		outcome, err := p.ProcessEvent(p.ctx, ev, opts)
		if err != nil {
			p.logger.WithError(err).WithField("item_id", ev.ItemID).Error("Failed to process event")
			return
		}
		p.logger.WithFields(logrus.Fields{
			"item_id": ev.ItemID,
			"outcome": outcome.Status,
			"reason":  outcome.Reason,
		}).Info("Event processed")
	}()
}

// Shutdown waits for queued events, cancelling them if ctx expires first
func (p *Pipeline) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
