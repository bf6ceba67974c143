package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const otpDigits = 6

// GenerateOTP generates a 6-digit OTP
func GenerateOTP() (string, error) {
	otp := make([]byte, 0, otpDigits)
	for i := 0; i < otpDigits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		otp = append(otp, byte('0'+n.Int64()))
	}
	return string(otp), nil
}
