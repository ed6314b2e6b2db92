package resolver

import (
	"crypto/md5" //nolint:gosec // MD5 is a distribution function here, not a security primitive.
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/lllypuk/dwidmapper/internal/domain/errs"
)

// FallbackMode selects the arithmetic used to reduce a digest to a directory index.
type FallbackMode string

// Fallback modes.
const (
	// FallbackExact reduces the 128-bit MD5 digest modulo N with arbitrary precision.
	FallbackExact FallbackMode = "exact"

	// FallbackLegacy rounds the digest to the nearest float64 before taking a
	// floating-point remainder. Fixtures produced by the JavaScript simulator
	// were assigned this way.
	FallbackLegacy FallbackMode = "legacy"
)

// ParseFallbackMode converts a config value into a FallbackMode.
// The empty string selects FallbackExact.
func ParseFallbackMode(s string) (FallbackMode, error) {
	switch FallbackMode(strings.ToLower(s)) {
	case "", FallbackExact:
		return FallbackExact, nil
	case FallbackLegacy:
		return FallbackLegacy, nil
	default:
		return "", fmt.Errorf("%w: fallback mode %q", errs.ErrInvalidInput, s)
	}
}

// Digest returns the MD5 digest of name's UTF-8 bytes read as a big-endian
// unsigned 128-bit integer (the hex digest parsed in base 16).
func Digest(name string) *big.Int {
	sum := md5.Sum([]byte(name)) //nolint:gosec // See import comment.
	return new(big.Int).SetBytes(sum[:])
}

// ExactIndex returns Digest(name) mod n. n must be positive.
func ExactIndex(name string, n int) int {
	m := new(big.Int).Mod(Digest(name), big.NewInt(int64(n)))
	return int(m.Int64())
}

// LegacyIndex returns the index the JavaScript simulator computed:
// the digest rounded half-to-even to a float64, then fmod n. n must be positive.
func LegacyIndex(name string, n int) int {
	f, _ := new(big.Float).SetInt(Digest(name)).Float64()
	return int(math.Mod(f, float64(n)))
}

// indexFunc returns the index function for the mode.
func (m FallbackMode) indexFunc() func(string, int) int {
	if m == FallbackLegacy {
		return LegacyIndex
	}
	return ExactIndex
}
