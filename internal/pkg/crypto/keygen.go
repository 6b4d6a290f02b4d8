package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// SecretSize is the size in bytes of generated session signing secrets.
const SecretSize = 32

const randomChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateSecret generates a random signing secret, hex-encoded.
func GenerateSecret() (string, error) {
	key := make([]byte, SecretSize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// GenerateRandomString generates a random alphanumeric string of the given length.
func GenerateRandomString(length int) (string, error) {
	result := make([]byte, length)

	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	for i := 0; i < length; i++ {
		result[i] = randomChars[int(randomBytes[i])%len(randomChars)]
	}

	return string(result), nil
}
