// Package misc provides small helpers shared across the library.
package misc

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// tokenAlphabet is the character set for generated secrets. It omits the
// visually ambiguous characters O, i, l, o, 0 and 1 so a token read off a
// screen can be retyped without guesswork.
const tokenAlphabet = "ABCDEFGHIJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"

// RandomToken generates a cryptographically secure random string of the given
// length drawn from tokenAlphabet. It is used for OAuth2 state parameters and
// for deduplication IDs on money-moving calls.
//
// Returns:
//   - string: The generated token
//   - error: An error if the system random source fails, nil otherwise
func RandomToken(length int) (string, error) {
	out := make([]byte, length)
	limit := big.NewInt(int64(len(tokenAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate random token: %w", err)
		}
		out[i] = tokenAlphabet[n.Int64()]
	}
	return string(out), nil
}
