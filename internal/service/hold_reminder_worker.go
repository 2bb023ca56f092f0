package service

import (
	"context"
	"sync"
	"time"

	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/rs/zerolog"
)

// HoldReminderWorker nudges requesters about active holds every seven days
// and retries undelivered notifications while it is at it.
type HoldReminderWorker struct {
	txm       domain.TxManager
	blockRepo domain.BlockRepository
	notifier  *Notifier
	logger    zerolog.Logger
	interval  time.Duration
	batchSize int
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewHoldReminderWorker creates a new hold reminder worker.
func NewHoldReminderWorker(
	txm domain.TxManager,
	blockRepo domain.BlockRepository,
	notifier *Notifier,
	logger zerolog.Logger,
	interval time.Duration,
	batchSize int,
) *HoldReminderWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &HoldReminderWorker{
		txm:       txm,
		blockRepo: blockRepo,
		notifier:  notifier,
		logger:    logger.With().Str("component", "hold_reminder_worker").Logger(),
		interval:  interval,
		batchSize: batchSize,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background reminder sweep.
func (w *HoldReminderWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info().Dur("interval", w.interval).Msg("Starting hold reminder worker")
	go w.run(ctx)
}

// Stop gracefully stops the worker.
func (w *HoldReminderWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.logger.Info().Msg("Stopping hold reminder worker")
	close(w.stopCh)
	<-w.doneCh
	w.logger.Info().Msg("Hold reminder worker stopped")
}

func (w *HoldReminderWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	w.Sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-w.stopCh:
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep sends due reminders and schedules the next one seven days out, or
// never when the hold ends first. It also drains the undelivered backlog.
func (w *HoldReminderWorker) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	var staged []*domain.Notification
	err := w.txm.WithTx(ctx, func(tx domain.Tx) error {
		blocks, err := w.blockRepo.ListReminderDueForUpdateTx(ctx, tx, now, w.batchSize)
		if err != nil {
			return err
		}
		for _, block := range blocks {
			next := now.AddDate(0, 0, domain.BlockExtensionDays)
			if next.After(block.BlockedUntil) {
				block.NextNotifyAt = nil
			} else {
				block.NextNotifyAt = &next
			}
			if err := w.blockRepo.UpdateTx(ctx, tx, block); err != nil {
				return err
			}
			staged = append(staged, Event(
				ToRoleAndUsers(domain.RoleFinancialManager, block.RequestedBy),
				domain.NotifyBlockReminder,
				domain.EntityBlock,
				block.ID,
				"Block is still holding its unit; extend or release it",
			))
		}
		return w.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		w.logger.Error().Err(err).Msg("Hold reminder sweep failed")
		return
	}
	w.notifier.DeliverAfterCommit(ctx, staged)

	if err := w.notifier.DeliverPending(ctx, w.batchSize); err != nil {
		w.logger.Error().Err(err).Msg("Notification retry sweep failed")
	}
}
