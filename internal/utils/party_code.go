package utils

import (
	"crypto/rand"
	"fmt"

	"github.com/harusame/workshop-live-api/internal/constants"
)

// GeneratePartyCode generates a random 6-character join code drawn from a
// 32-symbol alphabet that excludes visually confusable characters (I, O, 0,
// 1). The alphabet size divides 256, so indexing by byte modulo the alphabet
// introduces no bias.
func GeneratePartyCode() (string, error) {
	bytes := make([]byte, constants.PartyCodeLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	code := make([]byte, constants.PartyCodeLength)
	for i, b := range bytes {
		code[i] = constants.PartyCodeAlphabet[int(b)%len(constants.PartyCodeAlphabet)]
	}
	return string(code), nil
}
