package auth

import "golang.org/x/crypto/bcrypt"

// PasswordHasher hashes and verifies secrets with bcrypt.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher builds a hasher with the configured cost. Costs outside
// the bcrypt range fall back to the library default.
func NewPasswordHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return PasswordHasher{cost: cost}
}

// Hash derives the bcrypt hash of a plaintext secret.
func (h PasswordHasher) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plain matches the stored hash.
func (h PasswordHasher) Verify(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
