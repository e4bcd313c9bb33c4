package traverse

import (
	"fmt"
	"io"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Progress is emitted once per message publication, in traversal order.
type Progress struct {
	Slot             uint64
	Signature        solana.Signature
	Count            uint64
	BestRunLength    uint64
	BestRunStartSlot uint64
	// Message is nil when the instruction arguments could not be decoded.
	Message *PostMessageData
}

type Reporter interface {
	Report(p Progress)
}

type ReporterFunc func(p Progress)

func (f ReporterFunc) Report(p Progress) { f(p) }

// LogReporter reports progress through a zap logger.
type LogReporter struct {
	Logger *zap.Logger
}

func (r LogReporter) Report(p Progress) {
	r.Logger.Info("message observed",
		zap.Uint64("slot", p.Slot),
		zap.Uint64("count", p.Count),
		zap.Uint64("best_run_length", p.BestRunLength),
		zap.Uint64("best_run_start_slot", p.BestRunStartSlot))

	if p.Message != nil && r.Logger.Core().Enabled(zap.DebugLevel) {
		r.Logger.Debug("post message data",
			zap.Stringer("signature", p.Signature),
			zap.Uint64("slot", p.Slot),
			zap.Uint32("nonce", p.Message.Nonce),
			zap.Stringer("consistency_level", p.Message.ConsistencyLevel),
			zap.Int("payload_len", len(p.Message.Payload)))
	}
}

// TextReporter writes one "slot count bestRunLength bestRunStartSlot" line per message.
type TextReporter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

func (r *TextReporter) Report(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.w, "%d %d %d %d\n", p.Slot, p.Count, p.BestRunLength, p.BestRunStartSlot)
}
