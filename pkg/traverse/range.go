package traverse

import (
	"context"
	"fmt"

	"github.com/certusone/wormhole/msgscan/pkg/ledger"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Range bounds a traversal. Signature listing walks backwards from StartSignature (exclusive) down to
// CutoffSignature (exclusive).
type Range struct {
	FromSlot        uint64
	ToSlot          uint64
	StartSignature  solana.Signature
	CutoffSignature solana.Signature
}

func usableBlock(b *ledger.BlockRef) bool {
	return b != nil && b.BlockTime != nil && len(b.Signatures) > 0
}

// ResolveRange finds the signatures bounding [fromSlot, toSlot]. The block at toSlot must exist. Empty slots at the
// start of the range are skipped by moving fromSlot forward one slot at a time; maxSkipped caps the number of skipped
// slots (zero means the range itself is the only bound).
func ResolveRange(ctx context.Context, logger *zap.Logger, client ledger.Client, fromSlot, toSlot, maxSkipped uint64) (*Range, error) {
	if fromSlot > toSlot {
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidRange, fromSlot, toSlot)
	}

	var fromBlock, toBlock *ledger.BlockRef
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fromBlock, err = client.GetBlock(gCtx, fromSlot)
		return err
	})
	g.Go(func() error {
		var err error
		toBlock, err = client.GetBlock(gCtx, toSlot)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch range bounds: %w", err)
	}

	if !usableBlock(toBlock) {
		return nil, fmt.Errorf("%w: failed to fetch block %d", ErrUpstreamInconsistency, toSlot)
	}

	var skipped uint64
	for !usableBlock(fromBlock) {
		skipped++
		if maxSkipped > 0 && skipped > maxSkipped {
			return nil, fmt.Errorf("%w: more than %d empty slots from %d", ErrTooManySkippedSlots, maxSkipped, fromSlot-maxSkipped)
		}

		logger.Debug("skipping empty slot at range start", zap.Uint64("slot", fromSlot))
		fromSlot++
		if fromSlot > toSlot {
			return nil, fmt.Errorf("%w: %d > %d", ErrInvalidRange, fromSlot, toSlot)
		}

		var err error
		fromBlock, err = client.GetBlock(ctx, fromSlot)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch range bounds: %w", err)
		}
	}

	if skipped > 0 {
		logger.Info("skipped empty slots at range start", zap.Uint64("skipped", skipped), zap.Uint64("fromSlot", fromSlot))
	}

	return &Range{
		FromSlot:        fromSlot,
		ToSlot:          toSlot,
		StartSignature:  toBlock.Signatures[len(toBlock.Signatures)-1],
		CutoffSignature: fromBlock.Signatures[0],
	}, nil
}
