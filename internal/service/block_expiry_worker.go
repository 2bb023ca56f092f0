package service

import (
	"context"
	"sync"
	"time"

	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/statemachine"
	"github.com/rs/zerolog"
)

// BlockExpiryWorker is a background worker that expires approved blocks past
// blocked_until and frees their units. Expired rows are row-locked with SKIP
// LOCKED, so concurrent instances divide the batch instead of colliding, and
// a rerun over the same rows is a no-op.
type BlockExpiryWorker struct {
	txm         domain.TxManager
	blockRepo   domain.BlockRepository
	unitRepo    domain.UnitRepository
	historyRepo domain.HistoryRepository
	notifier    *Notifier
	machine     *statemachine.Machine
	logger      zerolog.Logger
	interval    time.Duration
	batchSize   int
	stopCh      chan struct{}
	doneCh      chan struct{}
	mu          sync.Mutex
	running     bool
}

// NewBlockExpiryWorker creates a new block expiry worker.
func NewBlockExpiryWorker(
	txm domain.TxManager,
	blockRepo domain.BlockRepository,
	unitRepo domain.UnitRepository,
	historyRepo domain.HistoryRepository,
	notifier *Notifier,
	logger zerolog.Logger,
	interval time.Duration,
	batchSize int,
) *BlockExpiryWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &BlockExpiryWorker{
		txm:         txm,
		blockRepo:   blockRepo,
		unitRepo:    unitRepo,
		historyRepo: historyRepo,
		notifier:    notifier,
		machine:     statemachine.Blocks(),
		logger:      logger.With().Str("component", "block_expiry_worker").Logger(),
		interval:    interval,
		batchSize:   batchSize,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start begins the background expiry sweep.
func (w *BlockExpiryWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info().Dur("interval", w.interval).Msg("Starting block expiry worker")
	go w.run(ctx)
}

// Stop gracefully stops the worker.
func (w *BlockExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.logger.Info().Msg("Stopping block expiry worker")
	close(w.stopCh)
	<-w.doneCh
	w.logger.Info().Msg("Block expiry worker stopped")
}

func (w *BlockExpiryWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	// Run immediately on startup
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

// Sweep expires one batch of overdue blocks. Exported so tests and the admin
// surface can trigger a pass without waiting for the ticker.
func (w *BlockExpiryWorker) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	var staged []*domain.Notification
	expired := 0
	err := w.txm.WithTx(ctx, func(tx domain.Tx) error {
		blocks, err := w.blockRepo.ListExpiredForUpdateTx(ctx, tx, now, w.batchSize)
		if err != nil {
			return err
		}
		for _, block := range blocks {
			next, err := w.machine.Resolve(statemachine.State(block.Status), statemachine.ActionExpire, domain.RoleScheduler)
			if err != nil {
				// Raced with a cancel; skip, the row is already settled
				continue
			}
			old := *block
			block.Status = domain.BlockStatus(next)
			block.NextNotifyAt = nil
			if err := w.blockRepo.UpdateTx(ctx, tx, block); err != nil {
				return err
			}
			unit, err := w.unitRepo.GetForUpdateTx(ctx, tx, block.UnitID)
			if err != nil {
				return err
			}
			// Units moved on to RESERVED or SOLD keep their state
			if unit.UnitStatus == domain.UnitBlocked {
				if err := w.unitRepo.SetStatusTx(ctx, tx, unit.ID, domain.UnitAvailable, true); err != nil {
					return err
				}
			}
			entry, err := domain.NewHistoryEntry(domain.EntityBlock, block.ID, domain.ChangeExpire, block.RequestedBy, &old, block)
			if err != nil {
				return err
			}
			if err := w.historyRepo.InsertTx(ctx, tx, entry); err != nil {
				return err
			}
			staged = append(staged, Event(
				ToRoleAndUsers(domain.RoleFinancialManager, block.RequestedBy),
				domain.NotifyBlockExpired,
				domain.EntityBlock,
				block.ID,
				"Block expired and the unit was released",
			))
			expired++
		}
		return w.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		w.logger.Error().Err(err).Msg("Block expiry sweep failed")
		return
	}
	w.notifier.DeliverAfterCommit(ctx, staged)
	if expired > 0 {
		w.logger.Info().Int("expired", expired).Msg("Block expiry sweep completed")
	}
}
