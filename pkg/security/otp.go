package security

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// DefaultOTPLength is the number of digits in a delivery code.
const DefaultOTPLength = 6

var otpDigitRange = big.NewInt(10)

// GenerateOTP returns a uniformly random numeric code of the given length.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("otp length must be positive")
	}
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, otpDigitRange)
		if err != nil {
			return "", fmt.Errorf("generate otp digit: %w", err)
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}

// OTPEqual compares two codes in constant time.
func OTPEqual(stored, supplied string) bool {
	if len(stored) != len(supplied) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}
