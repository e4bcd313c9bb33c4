package traverse

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/certusone/wormhole/msgscan/pkg/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProgram = solana.MustPublicKeyFromBase58("worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth")

func otherKey(b byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(bytes.Repeat([]byte{b}, solana.PublicKeyLength))
}

func TestIsMessagePosting(t *testing.T) {
	tests := []struct {
		label  string
		data   []byte
		result bool
	}{
		{label: "PostMessage", data: []byte{0x01, 0x02, 0x03}, result: true},
		{label: "PostMessageUnreliable", data: []byte{0x08}, result: true},
		{label: "OtherTag", data: []byte{0x00, 0x01}, result: false},
		{label: "VerifySignatures", data: []byte{0x07}, result: false},
		{label: "Empty", data: []byte{}, result: false},
		{label: "Nil", data: nil, result: false},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			assert.Equal(t, tc.result, IsMessagePosting(tc.data))
		})
	}
}

func TestDecodePostMessage(t *testing.T) {
	data, err := hex.DecodeString("012a000000020000006869" + "01")
	require.NoError(t, err)

	msg, err := DecodePostMessage(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), msg.Nonce)
	assert.Equal(t, []byte("hi"), msg.Payload)
	assert.Equal(t, consistencyLevelFinalized, msg.ConsistencyLevel)
	assert.Equal(t, "finalized", msg.ConsistencyLevel.String())

	_, err = DecodePostMessage([]byte{0x00})
	assert.Error(t, err)

	_, err = DecodePostMessage([]byte{0x01, 0x2a})
	assert.Error(t, err)
}

func TestExtractBridgeInstructionsOrder(t *testing.T) {
	keys := []solana.PublicKey{otherKey(1), otherKey(2), testProgram}
	tx := &ledger.TxRef{
		Slot: 10,
		Message: &ledger.LegacyMessage{
			Keys: keys,
			CompiledInstructions: []ledger.CompiledInstruction{
				{ProgramIDIndex: 2, Data: []byte{0x01, 0xa0}},
				{ProgramIDIndex: 1, Data: []byte{0x01, 0xa1}},
				{ProgramIDIndex: 2, Data: []byte{0x00, 0xa2}},
			},
		},
		Meta: &ledger.TxMeta{
			InnerInstructions: []ledger.InnerInstructionGroup{
				{Index: 1, Instructions: []ledger.Instruction{
					ledger.EncodedInstruction{ProgramIDIndex: 2, Accounts: []uint16{0}, Data: base58.Encode([]byte{0x08, 0xb0})},
					ledger.EncodedInstruction{ProgramIDIndex: 0, Data: base58.Encode([]byte{0x01, 0xb1})},
				}},
				{Index: 2, Instructions: []ledger.Instruction{
					ledger.CompiledInstruction{ProgramIDIndex: 2, Data: []byte{0x01, 0xb2}},
				}},
			},
		},
	}

	insts, err := ExtractBridgeInstructions(tx, testProgram)
	require.NoError(t, err)
	require.Len(t, insts, 4)
	assert.Equal(t, []byte{0x08, 0xb0}, insts[0].Data)
	assert.Equal(t, []uint16{0}, insts[0].AccountIndexes)
	assert.Equal(t, []byte{0x01, 0xb2}, insts[1].Data)
	assert.Equal(t, []byte{0x01, 0xa0}, insts[2].Data)
	assert.Equal(t, []byte{0x00, 0xa2}, insts[3].Data)

	msgs, err := MessageInstructions(tx, testProgram)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, byte(0xb0), msgs[0].Data[1])
	assert.Equal(t, byte(0xb2), msgs[1].Data[1])
	assert.Equal(t, byte(0xa0), msgs[2].Data[1])
}

func TestExtractBridgeInstructionsVersionedMessage(t *testing.T) {
	tx := &ledger.TxRef{
		Message: &ledger.VersionedMessage{
			StaticAccountKeys:    []solana.PublicKey{testProgram, otherKey(3)},
			CompiledInstructions: []ledger.CompiledInstruction{{ProgramIDIndex: 0, Data: []byte{0x08}}},
		},
	}

	msgs, err := MessageInstructions(tx, testProgram)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestExtractBridgeInstructionsProgramNotFound(t *testing.T) {
	tx := &ledger.TxRef{
		Message: &ledger.LegacyMessage{
			Keys:                 []solana.PublicKey{otherKey(1), otherKey(2)},
			CompiledInstructions: []ledger.CompiledInstruction{{ProgramIDIndex: 1, Data: []byte{0x01}}},
		},
		Meta: &ledger.TxMeta{InnerInstructions: []ledger.InnerInstructionGroup{
			{Instructions: []ledger.Instruction{ledger.CompiledInstruction{ProgramIDIndex: 0, Data: []byte{0x01}}}},
		}},
	}

	insts, err := ExtractBridgeInstructions(tx, testProgram)
	require.NoError(t, err)
	assert.Empty(t, insts)
}

func TestExtractBridgeInstructionsBadInnerData(t *testing.T) {
	tx := &ledger.TxRef{
		Message: &ledger.LegacyMessage{Keys: []solana.PublicKey{testProgram}},
		Meta: &ledger.TxMeta{InnerInstructions: []ledger.InnerInstructionGroup{
			{Instructions: []ledger.Instruction{ledger.EncodedInstruction{Data: "0OIl"}}},
		}},
	}

	_, err := ExtractBridgeInstructions(tx, testProgram)
	assert.Error(t, err)
}
