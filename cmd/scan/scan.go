package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/certusone/wormhole/msgscan/pkg/common"
	"github.com/certusone/wormhole/msgscan/pkg/config"
	"github.com/certusone/wormhole/msgscan/pkg/ledger"
	"github.com/certusone/wormhole/msgscan/pkg/readiness"
	"github.com/certusone/wormhole/msgscan/pkg/traverse"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	ipfslog "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	solanaRPC  *string
	network    *string
	program    *string
	commitment *string

	fromSlot        *uint64
	toSlot          *uint64
	workers         *int
	maxSkippedSlots *uint64

	requestsPerSecond *float64
	burst             *int
	maxRetries        *uint64
	rpcTimeout        *time.Duration

	output     *string
	statusAddr *string
	logLevel   *string
	logFormat  *string
)

const (
	outputLog  = "log"
	outputText = "text"
)

func init() {
	solanaRPC = ScanCmd.Flags().String("solanaRPC", "", "Solana RPC URL (default depends on --network, also read from SOLANA_RPC)")
	network = ScanCmd.Flags().String("network", "prod", "Network to scan (prod, test, dev)")
	program = ScanCmd.Flags().String("program", "", "Core bridge program address (default depends on --network)")
	commitment = ScanCmd.Flags().String("commitment", string(rpc.CommitmentFinalized), "Commitment level for every RPC read")

	fromSlot = ScanCmd.Flags().Uint64("from", 0, "First slot of the range (required)")
	toSlot = ScanCmd.Flags().Uint64("to", 0, "Last slot of the range (default: latest slot)")
	workers = ScanCmd.Flags().Int("workers", 1, "Transactions fetched concurrently per signature page")
	maxSkippedSlots = ScanCmd.Flags().Uint64("maxSkippedSlots", 0, "Maximum number of empty slots skipped at the start of the range (0 = unlimited)")

	requestsPerSecond = ScanCmd.Flags().Float64("rps", 0, "Maximum RPC requests per second (0 = unlimited)")
	burst = ScanCmd.Flags().Int("burst", 1, "RPC rate limiter burst")
	maxRetries = ScanCmd.Flags().Uint64("maxRetries", ledger.DefaultMaxRetries, "Retries of failed RPC transport calls")
	rpcTimeout = ScanCmd.Flags().Duration("rpcTimeout", ledger.DefaultRPCTimeout, "Timeout of a single RPC call")

	output = ScanCmd.Flags().String("output", outputLog, "Progress output (log, text)")
	statusAddr = ScanCmd.Flags().String("statusAddr", "", "Listen address for the status server (/readyz, /metrics), disabled if empty")
	logLevel = ScanCmd.Flags().String("logLevel", "info", "Logging level (debug, info, warn, error, dpanic, panic, fatal)")
	logFormat = ScanCmd.Flags().String("logFormat", logFormatConsole, "Log encoding (console, json)")
}

var ScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find the longest run of slots carrying core bridge messages",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.InitFileConfig(cmd, config.Options{
			FilePath:   viper.ConfigFileUsed(),
			EnvPrefix:  "MSGSCAN",
			EnvAliases: map[string]string{"solanaRPC": "SOLANA_RPC"},
		})
	},
	RunE:         runScan,
	SilenceUsage: true,
}

// params is the validated form of the scan flags.
type params struct {
	program    solana.PublicKey
	from       uint64
	to         uint64
	latest     bool
	workers    int
	maxSkipped uint64
	output     string
}

func runScan(cmd *cobra.Command, args []string) error {
	lvl, err := ipfslog.LevelFromString(*logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q", *logLevel)
	}

	logger, err := newLogger(cmd.ErrOrStderr(), lvl, *logFormat)
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("run_id", uuid.New().String()))
	defer func() { _ = logger.Sync() }()

	// Redirect ipfs logs to plain zap
	ipfslog.SetPrimaryCore(logger.Core())

	// Override the default go-log config, which uses a magic environment variable.
	ipfslog.SetAllLoggers(lvl)

	if !cmd.Flags().Changed("from") {
		return errors.New("--from is required")
	}

	env, err := common.ParseEnvironment(*network)
	if err != nil {
		return err
	}
	programKey, err := resolveProgram(env, *program)
	if err != nil {
		return err
	}

	rpcURL := *solanaRPC
	if rpcURL == "" {
		rpcURL = common.DefaultRPC(env)
	}
	if !common.ValidateURL(rpcURL, []string{"http", "https"}) {
		return fmt.Errorf("invalid --solanaRPC %q", rpcURL)
	}
	commitmentType, err := parseCommitment(*commitment)
	if err != nil {
		return err
	}
	if *statusAddr != "" && !common.ValidateURL(*statusAddr, []string{""}) {
		return fmt.Errorf("invalid --statusAddr %q, expected host:port", *statusAddr)
	}

	p := params{
		program:    programKey,
		from:       *fromSlot,
		to:         *toSlot,
		latest:     !cmd.Flags().Changed("to"),
		workers:    *workers,
		maxSkipped: *maxSkippedSlots,
		output:     *output,
	}

	readiness.RegisterComponent(common.ReadinessRangeResolved)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *statusAddr != "" {
		srv := NewStatusServer(*statusAddr, logger)
		errC := make(chan error, 1)
		common.RunWithScissors(ctx, errC, "status_server", func(ctx context.Context) error {
			logger.Info("status server listening", zap.String("addr", *statusAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		go func() {
			select {
			case err := <-errC:
				logger.Error("status server crashed", zap.Error(err))
			case <-ctx.Done():
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	logger.Info("starting scan",
		zap.String("network", string(env)),
		zap.String("rpc", rpcURL),
		zap.Stringer("program", programKey))

	client := ledger.NewRPCClient(logger, ledger.RPCConfig{
		URL:               rpcURL,
		Commitment:        commitmentType,
		RequestsPerSecond: *requestsPerSecond,
		Burst:             *burst,
		MaxRetries:        *maxRetries,
		Timeout:           *rpcTimeout,
	})

	_, err = scan(ctx, logger, client, p, cmd.OutOrStdout())
	if err != nil {
		logger.Error("scan failed", zap.Error(err))
	}
	return err
}

func parseCommitment(s string) (rpc.CommitmentType, error) {
	switch c := rpc.CommitmentType(s); c {
	case rpc.CommitmentFinalized, rpc.CommitmentConfirmed, rpc.CommitmentProcessed:
		return c, nil
	default:
		return "", fmt.Errorf("invalid --commitment %q (expected finalized, confirmed or processed)", s)
	}
}

func resolveProgram(env common.Environment, override string) (solana.PublicKey, error) {
	if override != "" {
		key, err := solana.PublicKeyFromBase58(override)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("invalid program address %q: %w", override, err)
		}
		return key, nil
	}
	return common.CoreBridgeAddress(env)
}

func newReporter(kind string, logger *zap.Logger, out io.Writer) (traverse.Reporter, error) {
	switch kind {
	case outputLog:
		return traverse.LogReporter{Logger: logger}, nil
	case outputText:
		return traverse.NewTextReporter(out), nil
	default:
		return nil, fmt.Errorf("unknown output %q (expected %s or %s)", kind, outputLog, outputText)
	}
}

func scan(ctx context.Context, logger *zap.Logger, client ledger.Client, p params, out io.Writer) (*traverse.Summary, error) {
	reporter, err := newReporter(p.output, logger, out)
	if err != nil {
		return nil, err
	}

	to := p.to
	if p.latest {
		to, err = client.GetSlot(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch latest slot: %w", err)
		}
		logger.Info("scanning up to the latest slot", zap.Uint64("to", to))
	}

	t := traverse.NewTraverser(logger, client, reporter, traverse.Config{
		Program:         p.program,
		Workers:         p.workers,
		MaxSkippedSlots: p.maxSkipped,
		Readiness:       common.ReadinessRangeResolved,
	})

	summary, err := t.Traverse(ctx, p.from, to)
	if err != nil {
		return nil, err
	}

	if p.output == outputText {
		fmt.Fprintf(out, "best run: %d slots starting at %d (%d messages in slots %d-%d)\n",
			summary.Flushed.BestRunLength,
			summary.Flushed.BestRunStartSlot,
			summary.Messages,
			summary.Range.FromSlot,
			summary.Range.ToSlot)
	}
	return summary, nil
}
