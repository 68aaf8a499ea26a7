// Package credentials hashes and verifies account passwords.
//
// Two stored formats are understood. New hashes are always bcrypt. The
// legacy Django-compatible PBKDF2 format ("pbkdf2_sha256$iter$salt$hash") is
// accepted for verification only, so that accounts migrated from the previous
// backend keep working without a forced password reset.
package credentials

import "strings"

// Scheme identifies the format of a stored credential hash.
type Scheme int

const (
	SchemeUnknown Scheme = iota
	SchemeLegacyPBKDF2
	SchemeBcrypt
)

const legacyPrefix = "pbkdf2_sha256$"

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

func (s Scheme) String() string {
	switch s {
	case SchemeLegacyPBKDF2:
		return "pbkdf2_sha256"
	case SchemeBcrypt:
		return "bcrypt"
	default:
		return "unknown"
	}
}

// DetectScheme is the only place stored hash prefixes are inspected.
func DetectScheme(stored string) Scheme {
	if strings.HasPrefix(stored, legacyPrefix) {
		return SchemeLegacyPBKDF2
	}
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(stored, p) {
			return SchemeBcrypt
		}
	}
	return SchemeUnknown
}
