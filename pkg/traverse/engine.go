package traverse

// The traversal reads the bridge program's transactions with `getSignaturesForAddress`, which only pages backwards:
// each page holds signatures older than a cursor and newer than a fixed cutoff. Pages are walked from the newest
// transaction of the range down to the oldest, so slots reach the RunState in non-increasing order. Any
// reordering (for example by the concurrent prefetch) must be undone before the slots are folded.

import (
	"context"
	"fmt"

	"github.com/certusone/wormhole/msgscan/pkg/common"
	"github.com/certusone/wormhole/msgscan/pkg/ledger"
	"github.com/certusone/wormhole/msgscan/pkg/readiness"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	signaturePages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "msgscan_signature_pages_total",
			Help: "Total number of signature pages fetched",
		})
	signaturesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "msgscan_signatures_scanned_total",
			Help: "Total number of bridge transactions fetched",
		})
	messagesObserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgscan_messages_observed_total",
			Help: "Total number of message publication instructions found",
		}, []string{"tag"})
	currentSlot = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "msgscan_current_slot",
			Help: "Slot of the most recently processed message",
		})
	bestRunLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "msgscan_best_run_length",
			Help: "Longest run of consecutive slots with messages found so far",
		})
)

// MaxSignaturesPerQuery is the page size of `getSignaturesForAddress`. A shorter page ends the traversal.
const MaxSignaturesPerQuery = 1000

type Config struct {
	// Program is the bridge program whose messages are counted.
	Program solana.PublicKey
	// PageSize defaults to MaxSignaturesPerQuery.
	PageSize int
	// Workers is the number of transactions of a page fetched concurrently. Values below 2 fetch strictly one at a time.
	Workers int
	// MaxSkippedSlots caps the empty slots skipped at the start of the range. Zero disables the cap.
	MaxSkippedSlots uint64
	// Readiness, if set, is flagged ready once the range is resolved.
	Readiness readiness.Component
}

// Summary describes a completed traversal.
type Summary struct {
	Range        Range
	Pages        uint64
	Signatures   uint64
	Transactions uint64
	Messages     uint64
	// FailedTransactions counts transactions with messages whose execution failed. Their messages are still counted.
	FailedTransactions uint64
	// State is the tracker state after the last message.
	State RunState
	// Flushed additionally accounts for the run still in progress when the traversal ended.
	Flushed RunState
}

type Traverser struct {
	logger   *zap.Logger
	client   ledger.Client
	reporter Reporter
	cfg      Config
}

func NewTraverser(logger *zap.Logger, client ledger.Client, reporter Reporter, cfg Config) *Traverser {
	if cfg.PageSize <= 0 {
		cfg.PageSize = MaxSignaturesPerQuery
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if reporter == nil {
		reporter = LogReporter{Logger: logger}
	}
	return &Traverser{
		logger:   logger,
		client:   client,
		reporter: reporter,
		cfg:      cfg,
	}
}

// Traverse scans the bridge program's transactions in [fromSlot, toSlot] with the default configuration for program.
func Traverse(ctx context.Context, logger *zap.Logger, client ledger.Client, program solana.PublicKey, fromSlot, toSlot uint64, reporter Reporter) error {
	_, err := NewTraverser(logger, client, reporter, Config{Program: program}).Traverse(ctx, fromSlot, toSlot)
	return err
}

// Traverse reports every message publication in [fromSlot, toSlot] and returns the final tracker state.
// Any error aborts the whole traversal; there is no partial result.
func (t *Traverser) Traverse(ctx context.Context, fromSlot, toSlot uint64) (*Summary, error) {
	t.logger.Info("fetching info for blocks", zap.Uint64("from", fromSlot), zap.Uint64("to", toSlot))

	r, err := ResolveRange(ctx, t.logger, t.client, fromSlot, toSlot, t.cfg.MaxSkippedSlots)
	if err != nil {
		return nil, err
	}
	if t.cfg.Readiness != "" {
		readiness.SetReady(t.cfg.Readiness)
	}

	t.logger.Info("resolved range",
		zap.Uint64("from", r.FromSlot),
		zap.Uint64("to", r.ToSlot),
		zap.Stringer("start_signature", r.StartSignature),
		zap.Stringer("cutoff_signature", r.CutoffSignature))

	summary := &Summary{Range: *r}
	var state RunState
	cursor := r.StartSignature

	for {
		page, err := t.client.GetSignaturesBefore(ctx, t.cfg.Program, cursor, r.CutoffSignature, t.cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list signatures before %s: %w", cursor, err)
		}
		signaturePages.Inc()
		summary.Pages++
		summary.Signatures += uint64(len(page))

		t.logger.Debug("fetched signature page",
			zap.Stringer("before", cursor),
			zap.Int("num_signatures", len(page)))

		state, err = t.processPage(ctx, page, state, summary)
		if err != nil {
			return nil, err
		}

		if len(page) < t.cfg.PageSize {
			break
		}
		cursor = page[len(page)-1].Signature
	}

	summary.State = state
	summary.Flushed = state.Flush()

	t.logger.Info("traversal complete",
		zap.Uint64("pages", summary.Pages),
		zap.Uint64("transactions", summary.Transactions),
		zap.Uint64("messages", summary.Messages),
		zap.Uint64("failed_transactions", summary.FailedTransactions),
		zap.Uint64("best_run_length", state.BestRunLength),
		zap.Uint64("best_run_start_slot", state.BestRunStartSlot),
		zap.Uint64("flushed_best_run_length", summary.Flushed.BestRunLength),
		zap.Uint64("flushed_best_run_start_slot", summary.Flushed.BestRunStartSlot))

	return summary, nil
}

func (t *Traverser) processPage(ctx context.Context, page []ledger.SignatureRef, state RunState, summary *Summary) (RunState, error) {
	if t.cfg.Workers == 1 {
		for _, sig := range page {
			tx, err := t.fetchTransaction(ctx, sig.Signature)
			if err != nil {
				return state, err
			}
			state, err = t.processTransaction(tx, state, summary)
			if err != nil {
				return state, err
			}
		}
		return state, nil
	}

	txs, err := t.prefetch(ctx, page)
	if err != nil {
		return state, err
	}
	for _, tx := range txs {
		state, err = t.processTransaction(tx, state, summary)
		if err != nil {
			return state, err
		}
	}
	return state, nil
}

// prefetch fetches the transactions of a page with up to cfg.Workers requests in flight. The result is indexed like
// the page, so processing order does not depend on completion order.
func (t *Traverser) prefetch(ctx context.Context, page []ledger.SignatureRef) ([]*ledger.TxRef, error) {
	txs := make([]*ledger.TxRef, len(page))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Workers)
	for i, sig := range page {
		i, sig := i, sig
		fetch := common.WrapWithScissors("prefetch", func(ctx context.Context) error {
			tx, err := t.fetchTransaction(ctx, sig.Signature)
			if err != nil {
				return err
			}
			txs[i] = tx
			return nil
		})
		g.Go(func() error { return fetch(gCtx) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return txs, nil
}

func (t *Traverser) fetchTransaction(ctx context.Context, signature solana.Signature) (*ledger.TxRef, error) {
	tx, err := t.client.GetTransaction(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("%w for signature %s: %w", ErrTransactionFetch, signature, err)
	}
	if tx == nil || tx.BlockTime == nil {
		return nil, fmt.Errorf("%w for signature %s", ErrTransactionFetch, signature)
	}
	signaturesScanned.Inc()
	return tx, nil
}

func (t *Traverser) processTransaction(tx *ledger.TxRef, state RunState, summary *Summary) (RunState, error) {
	insts, err := MessageInstructions(tx, t.cfg.Program)
	if err != nil {
		return state, fmt.Errorf("%w for signature %s: %w", ErrTransactionFetch, tx.Signature, err)
	}
	summary.Transactions++

	if len(insts) == 0 {
		return state, nil
	}

	failed := tx.Meta != nil && tx.Meta.Err != nil
	if failed {
		summary.FailedTransactions++
	}

	t.logger.Debug("found message publications",
		zap.Stringer("signature", tx.Signature),
		zap.Uint64("slot", tx.Slot),
		zap.String("version", tx.Message.Version()),
		zap.Bool("failed", failed),
		zap.Int("num_messages", len(insts)))

	for i, inst := range insts {
		state = state.Observe(tx.Slot)
		summary.Messages++

		tag := "reliable"
		if inst.Data[0] == postMessageUnreliableInstructionID {
			tag = "unreliable"
		}
		messagesObserved.WithLabelValues(tag).Inc()
		currentSlot.Set(float64(tx.Slot))
		bestRunLength.Set(float64(state.BestRunLength))

		msg, err := DecodePostMessage(inst.Data)
		if err != nil {
			t.logger.Debug("undecodable post message data",
				zap.Stringer("signature", tx.Signature),
				zap.Uint64("slot", tx.Slot),
				zap.Int("idx", i),
				zap.Error(err))
		}

		t.reporter.Report(Progress{
			Slot:             tx.Slot,
			Signature:        tx.Signature,
			Count:            state.Count,
			BestRunLength:    state.BestRunLength,
			BestRunStartSlot: state.BestRunStartSlot,
			Message:          msg,
		})
	}
	return state, nil
}
