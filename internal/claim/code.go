package claim

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	PrefixGaransi = "GAR"
	PrefixOrder   = "ORD"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewCode returns "<prefix>-<YYYYMMDD><4 random uppercase alphanumerics>".
func NewCode(prefix string, now time.Time) (string, error) {
	suffix := make([]byte, 4)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		suffix[i] = codeAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%s%s", prefix, now.Format("20060102"), suffix), nil
}
