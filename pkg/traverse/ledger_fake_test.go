package traverse

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/certusone/wormhole/msgscan/pkg/ledger"
	"github.com/gagliardetto/solana-go"
)

type pageRequest struct {
	before, until solana.Signature
	limit         int
}

// fakeLedger is an in-memory ledger.Client. Signature pages are served in the order they were added.
type fakeLedger struct {
	mu sync.Mutex

	slot       uint64
	blocks     map[uint64]*ledger.BlockRef
	blockErr   error
	blockCalls map[uint64]int

	pages    [][]ledger.SignatureRef
	requests []pageRequest

	txs     map[solana.Signature]*ledger.TxRef
	txDelay func(sig solana.Signature) time.Duration
	txCalls int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		blocks:     map[uint64]*ledger.BlockRef{},
		blockCalls: map[uint64]int{},
		txs:        map[solana.Signature]*ledger.TxRef{},
	}
}

func (f *fakeLedger) GetSlot(ctx context.Context) (uint64, error) {
	return f.slot, nil
}

func (f *fakeLedger) GetBlock(ctx context.Context, slot uint64) (*ledger.BlockRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockCalls[slot]++
	if f.blockErr != nil {
		return nil, f.blockErr
	}
	return f.blocks[slot], nil
}

func (f *fakeLedger) GetSignaturesBefore(ctx context.Context, program solana.PublicKey, before, until solana.Signature, limit int) ([]ledger.SignatureRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.requests)
	f.requests = append(f.requests, pageRequest{before: before, until: until, limit: limit})
	if i >= len(f.pages) {
		return nil, nil
	}
	return f.pages[i], nil
}

func (f *fakeLedger) GetTransaction(ctx context.Context, signature solana.Signature) (*ledger.TxRef, error) {
	if f.txDelay != nil {
		select {
		case <-time.After(f.txDelay(signature)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCalls++
	return f.txs[signature], nil
}

func (f *fakeLedger) blockFetches(slot uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockCalls[slot]
}

func (f *fakeLedger) totalBlockFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.blockCalls {
		n += c
	}
	return n
}

// addBlock registers a usable block at slot holding the given signatures.
func (f *fakeLedger) addBlock(slot uint64, sigs ...solana.Signature) {
	bt := time.Unix(1700000000+int64(slot), 0)
	f.blocks[slot] = &ledger.BlockRef{Slot: slot, BlockTime: &bt, Signatures: sigs}
}

// addTx registers a transaction at slot with one top-level bridge instruction per tag.
func (f *fakeLedger) addTx(sig solana.Signature, slot uint64, tags ...byte) ledger.SignatureRef {
	bt := time.Unix(1700000000+int64(slot), 0)
	insts := make([]ledger.CompiledInstruction, 0, len(tags))
	for _, tag := range tags {
		insts = append(insts, ledger.CompiledInstruction{ProgramIDIndex: 1, AccountIndexes: []uint16{0}, Data: []byte{tag}})
	}
	f.txs[sig] = &ledger.TxRef{
		Signature: sig,
		Slot:      slot,
		BlockTime: &bt,
		Message: &ledger.LegacyMessage{
			Keys:                 []solana.PublicKey{otherKey(0xee), testProgram},
			CompiledInstructions: insts,
		},
		Meta: &ledger.TxMeta{},
	}
	return ledger.SignatureRef{Signature: sig, Slot: slot}
}

func (f *fakeLedger) addPage(refs ...ledger.SignatureRef) {
	f.pages = append(f.pages, refs)
}

// sigN returns a distinct signature for every n.
func sigN(n int) solana.Signature {
	var b [64]byte
	b[0] = 0xff
	binary.BigEndian.PutUint64(b[1:], uint64(n))
	return solana.SignatureFromBytes(b[:])
}

var errFakeNode = errors.New("node unavailable")
