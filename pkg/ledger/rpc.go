package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	queryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "msgscan_solana_query_latency",
			Help: "Latency histogram for Solana RPC calls",
		}, []string{"operation"})
	rpcErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgscan_solana_rpc_errors_total",
			Help: "Total number of failed Solana RPC attempts",
		}, []string{"operation", "reason"})
)

const (
	DefaultRPCTimeout  = 20 * time.Second
	DefaultMaxRetries  = 5
	defaultRetryPeriod = 500 * time.Millisecond
)

// JSON-RPC error codes returned for slots that have no block.
const (
	errCodeBlockNotAvailable          = -32004
	errCodeSlotSkipped                = -32007
	errCodeLongTermStorageSlotSkipped = -32009
)

type RPCConfig struct {
	URL        string
	Commitment rpc.CommitmentType
	// RequestsPerSecond limits outgoing calls. Zero disables the limiter.
	RequestsPerSecond float64
	Burst             int
	// MaxRetries bounds retries of transport failures. JSON-RPC errors are never retried.
	MaxRetries           uint64
	RetryInitialInterval time.Duration
	Timeout              time.Duration
}

// RPCClient implements Client on top of a Solana JSON-RPC endpoint.
type RPCClient struct {
	logger          *zap.Logger
	client          *rpc.Client
	commitment      rpc.CommitmentType
	limiter         *rate.Limiter
	maxRetries      uint64
	initialInterval time.Duration
	timeout         time.Duration
}

var _ Client = (*RPCClient)(nil)

func NewRPCClient(logger *zap.Logger, cfg RPCConfig) *RPCClient {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	commitment := cfg.Commitment
	if commitment == "" {
		commitment = rpc.CommitmentFinalized
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultRPCTimeout
	}

	interval := cfg.RetryInitialInterval
	if interval == 0 {
		interval = defaultRetryPeriod
	}

	return &RPCClient{
		logger:          logger.With(zap.String("component", "solana_rpc")),
		client:          rpc.New(cfg.URL),
		commitment:      commitment,
		limiter:         limiter,
		maxRetries:      cfg.MaxRetries,
		initialInterval: interval,
		timeout:         timeout,
	}
}

// call runs fn under the rate limiter, a per-attempt timeout and exponential backoff for transport failures.
func (c *RPCClient) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	start := time.Now()
	defer func() {
		queryLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)

	attempt := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		rCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		err := fn(rCtx)
		if err == nil {
			return nil
		}

		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) {
			rpcErrors.WithLabelValues(operation, "rpc_error").Inc()
			return backoff.Permanent(err)
		}
		if errors.Is(err, rpc.ErrNotFound) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		rpcErrors.WithLabelValues(operation, "transport").Inc()
		return err
	}

	return backoff.RetryNotify(attempt, policy, func(err error, delay time.Duration) {
		c.logger.Warn("retrying solana rpc call",
			zap.String("operation", operation),
			zap.Duration("delay", delay),
			zap.Error(err))
	})
}

func (c *RPCClient) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	err := c.call(ctx, "get_slot", func(ctx context.Context) error {
		var err error
		slot, err = c.client.GetSlot(ctx, c.commitment)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("getSlot: %w", err)
	}
	return slot, nil
}

func (c *RPCClient) GetBlock(ctx context.Context, slot uint64) (*BlockRef, error) {
	rewards := false
	maxSupportedTransactionVersion := uint64(0)

	var out *rpc.GetBlockResult
	err := c.call(ctx, "get_block", func(ctx context.Context) error {
		var err error
		out, err = c.client.GetBlockWithOpts(ctx, slot, &rpc.GetBlockOpts{
			TransactionDetails:             rpc.TransactionDetailsSignatures,
			Rewards:                        &rewards,
			Commitment:                     c.commitment,
			MaxSupportedTransactionVersion: &maxSupportedTransactionVersion,
		})
		return err
	})
	if err != nil {
		if isMissingBlock(err) {
			c.logger.Debug("empty slot", zap.Uint64("slot", slot), zap.Error(err))
			return nil, nil
		}
		return nil, fmt.Errorf("getBlock %d: %w", slot, err)
	}

	if out == nil {
		return nil, nil
	}

	block := &BlockRef{
		Slot:       slot,
		Signatures: out.Signatures,
	}
	if out.BlockTime != nil {
		t := time.Unix(int64(*out.BlockTime), 0)
		block.BlockTime = &t
	}
	return block, nil
}

func isMissingBlock(err error) bool {
	if errors.Is(err, rpc.ErrNotFound) {
		return true
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case errCodeBlockNotAvailable, errCodeSlotSkipped, errCodeLongTermStorageSlotSkipped:
			return true
		}
	}
	return false
}

func (c *RPCClient) GetSignaturesBefore(ctx context.Context, program solana.PublicKey, before, until solana.Signature, limit int) ([]SignatureRef, error) {
	var out []*rpc.TransactionSignature
	err := c.call(ctx, "get_signatures_for_address", func(ctx context.Context) error {
		var err error
		out, err = c.client.GetSignaturesForAddressWithOpts(ctx, program, &rpc.GetSignaturesForAddressOpts{
			Before:     before,
			Until:      until,
			Commitment: c.commitment,
			Limit:      &limit,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getSignaturesForAddress: %w", err)
	}

	sigs := make([]SignatureRef, 0, len(out))
	for _, s := range out {
		sigs = append(sigs, SignatureRef{Signature: s.Signature, Slot: s.Slot})
	}
	return sigs, nil
}

// GetTransaction reads the raw JSON result so the inner instructions keep their base58 data as delivered by the node.
func (c *RPCClient) GetTransaction(ctx context.Context, signature solana.Signature) (*TxRef, error) {
	params := map[string]interface{}{
		"encoding":                       solana.EncodingBase64,
		"commitment":                     c.commitment,
		"maxSupportedTransactionVersion": 0,
	}

	var raw json.RawMessage
	err := c.call(ctx, "get_transaction", func(ctx context.Context) error {
		raw = nil
		return c.client.RPCCallForInto(ctx, &raw, "getTransaction", []interface{}{signature.String(), params})
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getTransaction %s: %w", signature, err)
	}

	return decodeTransactionResult(signature, raw)
}

func decodeTransactionResult(signature solana.Signature, raw []byte) (*TxRef, error) {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil, nil
	}
	res := gjson.ParseBytes(raw)
	if res.Type == gjson.Null {
		return nil, nil
	}

	var env rpc.TransactionResultEnvelope
	if err := json.Unmarshal([]byte(res.Get("transaction").Raw), &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction %s: %w", signature, err)
	}
	tx, err := env.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction %s: %w", signature, err)
	}

	instructions := make([]CompiledInstruction, 0, len(tx.Message.Instructions))
	for _, inst := range tx.Message.Instructions {
		instructions = append(instructions, CompiledInstruction{
			ProgramIDIndex: inst.ProgramIDIndex,
			AccountIndexes: inst.Accounts,
			Data:           []byte(inst.Data),
		})
	}

	var msg Message
	if tx.Message.IsVersioned() {
		msg = &VersionedMessage{StaticAccountKeys: tx.Message.AccountKeys, CompiledInstructions: instructions}
	} else {
		msg = &LegacyMessage{Keys: tx.Message.AccountKeys, CompiledInstructions: instructions}
	}

	out := &TxRef{
		Signature: signature,
		Slot:      res.Get("slot").Uint(),
		Message:   msg,
	}

	if bt := res.Get("blockTime"); bt.Exists() && bt.Type != gjson.Null {
		t := time.Unix(bt.Int(), 0)
		out.BlockTime = &t
	}

	if meta := res.Get("meta"); meta.Exists() && meta.Type != gjson.Null {
		out.Meta = decodeMeta(meta)
	}

	return out, nil
}

func decodeMeta(meta gjson.Result) *TxMeta {
	out := &TxMeta{}
	if e := meta.Get("err"); e.Exists() && e.Type != gjson.Null {
		out.Err = e.Value()
	}

	for _, group := range meta.Get("innerInstructions").Array() {
		g := InnerInstructionGroup{Index: uint16(group.Get("index").Uint())} // #nosec G115 -- instruction indexes fit in a uint16
		for _, inst := range group.Get("instructions").Array() {
			accounts := make([]uint16, 0)
			for _, a := range inst.Get("accounts").Array() {
				accounts = append(accounts, uint16(a.Uint())) // #nosec G115 -- account indexes fit in a uint16
			}
			g.Instructions = append(g.Instructions, EncodedInstruction{
				ProgramIDIndex: uint16(inst.Get("programIdIndex").Uint()), // #nosec G115 -- account indexes fit in a uint16
				Accounts:       accounts,
				Data:           inst.Get("data").String(),
			})
		}
		out.InnerInstructions = append(out.InnerInstructions, g)
	}
	return out
}
