package optimizer

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// Default model constants.
const (
	DefaultBlockSize     = 4_000_000 // vbytes
	DefaultBlocksPerYear = 144 * 365.25
	DefaultIterations    = 50
)

// Config holds the constants the cost model depends on.
type Config struct {
	BlockSize          float64 // block capacity in vbytes
	BlocksPerYear      float64
	SatoshisPerBitcoin float64
	Iterations         int // bisection iterations per stage
}

// DefaultConfig returns Bitcoin mainnet constants and 50 bisection iterations.
func DefaultConfig() Config {
	return Config{
		BlockSize:          DefaultBlockSize,
		BlocksPerYear:      DefaultBlocksPerYear,
		SatoshisPerBitcoin: btcutil.SatoshiPerBitcoin,
		Iterations:         DefaultIterations,
	}
}

// Validate checks that all constants are usable.
func (c Config) Validate() error {
	if c.BlockSize <= 0 {
		return fmt.Errorf("block_size must be positive, got %g", c.BlockSize)
	}
	if c.BlocksPerYear <= 0 {
		return fmt.Errorf("blocks_per_year must be positive, got %g", c.BlocksPerYear)
	}
	if c.SatoshisPerBitcoin <= 0 {
		return fmt.Errorf("satoshis_per_bitcoin must be positive, got %g", c.SatoshisPerBitcoin)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("iterations must be >= 1, got %d", c.Iterations)
	}
	return nil
}
