// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

func GenerateRandomString(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}

func GenerateNumericCode(length int) (string, error) {
	const digits = "0123456789"
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		b[i] = digits[n.Int64()]
	}

	return string(b), nil
}

// GenerateTicketNumber builds a human-readable repair ticket number,
// e.g. RT-20260901-4821.
func GenerateTicketNumber() (string, error) {
	suffix, err := GenerateNumericCode(4)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("RT-%s-%s", time.Now().Format("20060102"), suffix), nil
}

// GenerateReceiptNumber builds a sale receipt number, e.g. RC-20260901-7F3K2Q.
func GenerateReceiptNumber() (string, error) {
	suffix, err := GenerateRandomString(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("RC-%s-%s", time.Now().Format("20060102"), suffix), nil
}

func HashString(input string) string {
	hasher := sha256.New()
	hasher.Write([]byte(input))
	return hex.EncodeToString(hasher.Sum(nil))
}
