package ledger

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Instruction is either a CompiledInstruction or an EncodedInstruction.
type Instruction interface {
	normalize() (CompiledInstruction, error)
}

// CompiledInstruction is the normalized instruction shape: indexes into the message account keys and raw data.
type CompiledInstruction struct {
	ProgramIDIndex uint16
	AccountIndexes []uint16
	Data           []byte
}

// EncodedInstruction is an instruction whose data is still base58 text, as delivered in the JSON transaction meta.
type EncodedInstruction struct {
	ProgramIDIndex uint16
	Accounts       []uint16
	Data           string
}

func (i CompiledInstruction) normalize() (CompiledInstruction, error) {
	return i, nil
}

func (i EncodedInstruction) normalize() (CompiledInstruction, error) {
	data, err := base58.Decode(i.Data)
	if err != nil {
		return CompiledInstruction{}, fmt.Errorf("failed to decode instruction data: %w", err)
	}
	return CompiledInstruction{
		ProgramIDIndex: i.ProgramIDIndex,
		AccountIndexes: i.Accounts,
		Data:           data,
	}, nil
}

// NormalizeInstruction converts either instruction shape into a CompiledInstruction.
// Normalizing a CompiledInstruction returns it unchanged.
func NormalizeInstruction(inst Instruction) (CompiledInstruction, error) {
	if inst == nil {
		return CompiledInstruction{}, fmt.Errorf("nil instruction")
	}
	return inst.normalize()
}
