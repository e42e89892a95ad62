package auth

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword uses bcrypt so equal passwords never share a digest.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateComplexity requires at least 8 characters with at least one
// lowercase letter, one uppercase letter, one digit and one symbol.
func ValidateComplexity(password string) bool {
	if len([]rune(password)) < 8 {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}
