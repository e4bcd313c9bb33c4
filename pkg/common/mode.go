package common

import (
	"fmt"
	"strings"
)

type Environment string

const (
	MainNet      Environment = "prod"
	TestNet      Environment = "test" // public testnet
	UnsafeDevNet Environment = "dev"  // local devnet (solana-test-validator with the devnet bridge deployment)
)

// ParseEnvironment parses a string into the corresponding Environment value, allowing various reasonable variations.
func ParseEnvironment(str string) (Environment, error) {
	str = strings.ToLower(str)
	if str == "prod" || str == "mainnet" {
		return MainNet, nil
	}
	if str == "test" || str == "testnet" {
		return TestNet, nil
	}
	if str == "dev" || str == "devnet" || str == "unsafedevnet" {
		return UnsafeDevNet, nil
	}
	return UnsafeDevNet, fmt.Errorf("invalid environment string: %s", str)
}
