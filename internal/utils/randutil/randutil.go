package randutil

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
	"strings"
)

const lowerAlphaNum = "abcdefghijklmnopqrstuvwxyz0123456789"

func RandomString(length int) (string, error) {
	key := make([]byte, length)

	if _, err := rand.Read(key); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(key), nil
}

// LowerAlphaNumString returns a random string of lowercase letters and
// digits. Used for media ids.
func LowerAlphaNumString(length int) (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(lowerAlphaNum)))

	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(lowerAlphaNum[n.Int64()])
	}

	return sb.String(), nil
}

func MaskString(apiKey string, visibleStart, visibleEnd int) string {
	if len(apiKey) <= visibleStart+visibleEnd {
		return apiKey
	}

	start := apiKey[:visibleStart]
	end := apiKey[len(apiKey)-visibleEnd:]
	masked := start + strings.Repeat("*", len(apiKey)-(visibleStart+visibleEnd)) + end
	return masked
}
