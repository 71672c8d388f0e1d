package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// ID prefixes for each entity type.
const (
	UserIDPrefix           = "usr"
	AddressIDPrefix        = "adr"
	PasswordChangeIDPrefix = "pcr"
)

// GenerateID generates a unique ID with the given prefix
func GenerateID(prefix string) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 10

	result := make([]byte, length)
	for i := range result {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[num.Int64()]
	}

	return fmt.Sprintf("%s-%s", prefix, string(result))
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword checks if a password matches a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// NormalizeEmail lower-cases and trims an address so uniqueness checks are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateUserID validates the user ID format
func ValidateUserID(userID string) bool {
	return strings.HasPrefix(userID, UserIDPrefix+"-")
}

// ValidateAddressID validates the address ID format
func ValidateAddressID(addressID string) bool {
	return strings.HasPrefix(addressID, AddressIDPrefix+"-")
}

// ValidatePasswordChangeID validates the password change request ID format
func ValidatePasswordChangeID(requestID string) bool {
	return strings.HasPrefix(requestID, PasswordChangeIDPrefix+"-")
}

var fieldValidator = validator.New()

// ValidateCountryCode accepts an assigned, upper-case ISO-3166 alpha-2 code.
func ValidateCountryCode(code string) bool {
	return fieldValidator.Var(code, "iso3166_1_alpha2") == nil
}
