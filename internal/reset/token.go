package reset

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strconv"
)

var codeRange = big.NewInt(900000)

// randomSixDigitCode returns a uniform code in [100000, 999999].
func randomSixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeRange)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
