package traverse

import "errors"

var (
	// ErrInvalidRange is returned when fromSlot > toSlot. No network access happens before it is returned.
	ErrInvalidRange = errors.New("solana: invalid block range")
	// ErrUpstreamInconsistency is returned when the block at toSlot, which the caller guarantees to be finalized,
	// cannot be fetched or carries no timestamp.
	ErrUpstreamInconsistency = errors.New("solana: finalized block missing")
	// ErrTransactionFetch is returned when a listed signature's transaction or its block time cannot be fetched or decoded.
	ErrTransactionFetch = errors.New("solana: failed to fetch transaction")
	// ErrTooManySkippedSlots is returned when more than Config.MaxSkippedSlots empty slots precede the first usable block.
	ErrTooManySkippedSlots = errors.New("solana: too many skipped slots at range start")
)
