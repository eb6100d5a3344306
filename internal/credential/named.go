package credential

import (
	"fmt"
	"strings"
)

// ByName resolves a configured scheme name. An empty name selects argon2id.
func ByName(name string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameArgon2id:
		return Argon2id(DefaultArgon2idParams), nil
	case NameBcrypt:
		return Bcrypt(0), nil
	case NamePlain:
		return Plain(), nil
	default:
		return nil, fmt.Errorf("credential: unknown scheme %q", name)
	}
}
