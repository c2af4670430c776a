package ledger

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxEntityIDLength bounds entity ids in runes.
const MaxEntityIDLength = 128

// MaxKeyLength bounds idempotency keys, campaign ids, and entity types in runes.
const MaxKeyLength = 256

var (
	// ErrInvalidEntity is returned for entity ids that cannot be tracked.
	ErrInvalidEntity = errors.New("invalid entity id")
	// ErrInvalidKey is returned for unusable keys and labels.
	ErrInvalidKey = errors.New("invalid key")
)

// NormalizeEntityID trims and NFC-normalizes id and rejects empty, overlong,
// invalid UTF-8, or control-character ids.
func NormalizeEntityID(id string) (string, error) {
	return normalize(id, MaxEntityIDLength, ErrInvalidEntity)
}

// NormalizeKey applies the entity id rules to an idempotency key, campaign
// id, or entity type, with a MaxKeyLength bound.
func NormalizeKey(key string) (string, error) {
	return normalize(key, MaxKeyLength, ErrInvalidKey)
}

func normalize(s string, maxRunes int, sentinel error) (string, error) {
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: invalid UTF-8", sentinel)
	}
	n := norm.NFC.String(strings.TrimSpace(s))
	if n == "" {
		return "", fmt.Errorf("%w: empty", sentinel)
	}
	if utf8.RuneCountInString(n) > maxRunes {
		return "", fmt.Errorf("%w: longer than %d characters", sentinel, maxRunes)
	}
	for _, r := range n {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: contains control character %U", sentinel, r)
		}
	}
	return n, nil
}

// ClampPopulation bounds an external population sample to [0, MaxPopulation].
func ClampPopulation(n int64) int64 {
	if n < 0 {
		return 0
	}
	if n > MaxPopulation {
		return MaxPopulation
	}
	return n
}
