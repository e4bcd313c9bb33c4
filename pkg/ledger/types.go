// Package ledger is the read-only boundary between the scanner and a Solana RPC node. It defines the block,
// signature and transaction shapes the scanner consumes and an RPC backed implementation of Client.
package ledger

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Client is the subset of the Solana RPC surface needed to walk the transactions of a program.
// GetBlock and GetTransaction return nil, nil when the ledger has no such block or transaction.
type Client interface {
	GetSlot(ctx context.Context) (uint64, error)
	GetBlock(ctx context.Context, slot uint64) (*BlockRef, error)
	GetSignaturesBefore(ctx context.Context, program solana.PublicKey, before, until solana.Signature, limit int) ([]SignatureRef, error)
	GetTransaction(ctx context.Context, signature solana.Signature) (*TxRef, error)
}

type (
	// BlockRef is a block fetched with signature-level transaction details.
	BlockRef struct {
		Slot      uint64
		BlockTime *time.Time
		// First signature of every transaction, in block order.
		Signatures []solana.Signature
	}

	SignatureRef struct {
		Signature solana.Signature
		Slot      uint64
	}

	TxRef struct {
		Signature solana.Signature
		Slot      uint64
		BlockTime *time.Time
		Message   Message
		Meta      *TxMeta
	}

	TxMeta struct {
		// Err is the raw transaction error reported by the node, nil on success.
		Err               interface{}
		InnerInstructions []InnerInstructionGroup
	}

	// InnerInstructionGroup holds the instructions invoked while executing the top-level instruction at Index.
	InnerInstructionGroup struct {
		Index        uint16
		Instructions []Instruction
	}
)

// Message is implemented by LegacyMessage and VersionedMessage.
type Message interface {
	// AccountKeys returns the account keys instruction indexes refer to.
	AccountKeys() []solana.PublicKey
	Instructions() []CompiledInstruction
	Version() string
}

type LegacyMessage struct {
	Keys                 []solana.PublicKey
	CompiledInstructions []CompiledInstruction
}

func (m *LegacyMessage) AccountKeys() []solana.PublicKey     { return m.Keys }
func (m *LegacyMessage) Instructions() []CompiledInstruction { return m.CompiledInstructions }
func (m *LegacyMessage) Version() string                     { return "legacy" }

// VersionedMessage is a v0 message. Only the static account keys are known without resolving address lookup
// tables, so programs loaded through a lookup table are not visible here.
type VersionedMessage struct {
	StaticAccountKeys    []solana.PublicKey
	CompiledInstructions []CompiledInstruction
}

func (m *VersionedMessage) AccountKeys() []solana.PublicKey     { return m.StaticAccountKeys }
func (m *VersionedMessage) Instructions() []CompiledInstruction { return m.CompiledInstructions }
func (m *VersionedMessage) Version() string                     { return "0" }
