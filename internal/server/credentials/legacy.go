package credentials

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/docauth/internal/common"
	"github.com/dmitrijs2005/docauth/internal/cryptox"
)

// maxLegacyIterations bounds the work a single corrupt record can cause.
const maxLegacyIterations = 10_000_000

var errLegacyFormat = errors.New("malformed legacy hash")

type legacyRecord struct {
	iterations int
	salt       string
	expected   string
}

func parseLegacy(stored string) (legacyRecord, error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 4 || parts[0]+"$" != legacyPrefix {
		return legacyRecord{}, errLegacyFormat
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 || iterations > maxLegacyIterations {
		return legacyRecord{}, errLegacyFormat
	}
	if parts[2] == "" || parts[3] == "" {
		return legacyRecord{}, errLegacyFormat
	}
	return legacyRecord{iterations: iterations, salt: parts[2], expected: parts[3]}, nil
}

// verifyLegacy checks plaintext against a pbkdf2_sha256 record.
//
// The salt field is used as the raw bytes of its printed form, which is what
// Django does. Only when that derivation does not match and the field is
// valid base64 is the derivation retried once with the decoded bytes. The
// first match wins.
func verifyLegacy(plaintext, stored string) bool {
	rec, err := parseLegacy(stored)
	if err != nil {
		return false
	}
	if matchLegacy(plaintext, []byte(rec.salt), rec) {
		return true
	}
	salt, ok := decodeSalt(rec.salt)
	if !ok {
		return false
	}
	defer common.WipeByteArray(salt)
	return matchLegacy(plaintext, salt, rec)
}

func decodeSalt(field string) ([]byte, bool) {
	if b, err := base64.StdEncoding.DecodeString(field); err == nil {
		return b, true
	}
	if b, err := base64.RawStdEncoding.DecodeString(field); err == nil {
		return b, true
	}
	return nil, false
}

func matchLegacy(plaintext string, salt []byte, rec legacyRecord) bool {
	pw := []byte(plaintext)
	derived := cryptox.DerivePBKDF2SHA256(pw, salt, rec.iterations)
	encoded := []byte(base64.StdEncoding.EncodeToString(derived))

	ok := cryptox.ConstantTimeEqual(encoded, []byte(rec.expected))

	common.WipeByteArray(pw)
	common.WipeByteArray(derived)
	common.WipeByteArray(encoded)
	return ok
}
