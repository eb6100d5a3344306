package credential

import "golang.org/x/crypto/bcrypt"

type bcryptScheme struct {
	cost int
}

// Bcrypt returns a bcrypt scheme. A cost outside bcrypt's accepted range falls
// back to bcrypt.DefaultCost.
func Bcrypt(cost int) Scheme {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return bcryptScheme{cost: cost}
}

func (s bcryptScheme) Hash(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	return string(bytes), err
}

func (s bcryptScheme) Check(secret, stored string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret)) == nil
}
