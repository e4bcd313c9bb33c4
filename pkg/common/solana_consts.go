package common

import (
	"fmt"

	"github.com/certusone/wormhole/msgscan/pkg/readiness"
	"github.com/gagliardetto/solana-go"
)

const ReadinessRangeResolved readiness.Component = "solanaRangeResolved"

// Core bridge program addresses per environment.
var (
	MainNetCoreBridge = solana.MustPublicKeyFromBase58("worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth")
	TestNetCoreBridge = solana.MustPublicKeyFromBase58("3u8hJUVTA4jH1wYAyUur7FFZVQ8H635K3tSHHF4ssjQ5")
	DevNetCoreBridge  = solana.MustPublicKeyFromBase58("Bridge1p5gheXUvJ6jGWGeCsgPKgnE3YgdGKRVCMY9o")
)

// CoreBridgeAddress returns the core bridge program deployed in the given environment.
func CoreBridgeAddress(env Environment) (solana.PublicKey, error) {
	switch env {
	case MainNet:
		return MainNetCoreBridge, nil
	case TestNet:
		return TestNetCoreBridge, nil
	case UnsafeDevNet:
		return DevNetCoreBridge, nil
	default:
		return solana.PublicKey{}, fmt.Errorf("no core bridge address for environment %q", env)
	}
}

// DefaultRPC returns the public RPC endpoint for the given environment. Public endpoints are heavily rate limited.
func DefaultRPC(env Environment) string {
	switch env {
	case MainNet:
		return "https://api.mainnet-beta.solana.com"
	case TestNet:
		return "https://api.devnet.solana.com"
	default:
		return "http://localhost:8899"
	}
}
