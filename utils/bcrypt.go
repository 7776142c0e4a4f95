package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword derives the stored credential for a manager account at
// bcrypt's default cost. Only the hash ever reaches the database; the
// cleartext and the hash both stay out of exported documents.
func HashPassword(s string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
}

// ComparePassword checks a login attempt against the stored hash. A
// non-nil error counts as a failed attempt toward the lockout limit.
func ComparePassword(hashed string, normal string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(normal))
}
