package traverse

import (
	"fmt"

	"github.com/certusone/wormhole/msgscan/pkg/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

const (
	postMessageInstructionID           = 0x01
	postMessageUnreliableInstructionID = 0x08
)

type ConsistencyLevel uint8

const (
	consistencyLevelConfirmed ConsistencyLevel = 0
	consistencyLevelFinalized ConsistencyLevel = 1
)

func (c ConsistencyLevel) String() string {
	switch c {
	case consistencyLevelConfirmed:
		return "confirmed"
	case consistencyLevelFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// PostMessageData represents the user-supplied, untrusted instruction data of a message publication.
type PostMessageData struct {
	Nonce            uint32
	Payload          []byte
	ConsistencyLevel ConsistencyLevel
}

// IsMessagePosting reports whether the instruction data carries one of the two message publication tags.
func IsMessagePosting(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return data[0] == postMessageInstructionID || data[0] == postMessageUnreliableInstructionID
}

// DecodePostMessage decodes the borsh encoded arguments following the instruction tag.
func DecodePostMessage(data []byte) (*PostMessageData, error) {
	if !IsMessagePosting(data) {
		return nil, fmt.Errorf("not a post message instruction")
	}
	var out PostMessageData
	if err := borsh.Deserialize(&out, data[1:]); err != nil {
		return nil, fmt.Errorf("failed to deserialize instruction data: %w", err)
	}
	return &out, nil
}

// programIndex returns the position of program in the account keys, or -1.
func programIndex(keys []solana.PublicKey, program solana.PublicKey) int {
	for n, key := range keys {
		if key.Equals(program) {
			return n
		}
	}
	return -1
}

// ExtractBridgeInstructions returns the instructions of tx that invoke program: every inner instruction first, in group
// order, followed by the top-level instructions. A transaction whose account keys do not contain program yields none.
func ExtractBridgeInstructions(tx *ledger.TxRef, program solana.PublicKey) ([]ledger.CompiledInstruction, error) {
	idx := programIndex(tx.Message.AccountKeys(), program)
	if idx < 0 {
		return nil, nil
	}
	programIdx := uint16(idx) // #nosec G115 -- a transaction references at most 256 accounts

	var candidates []ledger.CompiledInstruction
	if tx.Meta != nil {
		for _, group := range tx.Meta.InnerInstructions {
			for _, inst := range group.Instructions {
				n, err := ledger.NormalizeInstruction(inst)
				if err != nil {
					return nil, fmt.Errorf("inner instruction of %d: %w", group.Index, err)
				}
				candidates = append(candidates, n)
			}
		}
	}
	candidates = append(candidates, tx.Message.Instructions()...)

	out := candidates[:0]
	for _, inst := range candidates {
		if inst.ProgramIDIndex == programIdx {
			out = append(out, inst)
		}
	}
	return out, nil
}

// MessageInstructions filters ExtractBridgeInstructions down to message publications.
func MessageInstructions(tx *ledger.TxRef, program solana.PublicKey) ([]ledger.CompiledInstruction, error) {
	insts, err := ExtractBridgeInstructions(tx, program)
	if err != nil {
		return nil, err
	}
	out := insts[:0]
	for _, inst := range insts {
		if IsMessagePosting(inst.Data) {
			out = append(out, inst)
		}
	}
	return out, nil
}
