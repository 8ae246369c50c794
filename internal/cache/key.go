package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// KeyPrefix namespaces every decision-cycle entry.
const KeyPrefix = "core"

// DateLayout is the as-of date format used in keys.
const DateLayout = "2006-01-02"

// ErrInvalidKey is returned when a key component would make the key ambiguous.
var ErrInvalidKey = errors.New("invalid cache key component")

// MakeKey builds "core:{version}:{asOfDate}:{fingerprint}".
// Components are validated so distinct triples never produce the same key.
func MakeKey(asOf, version, fingerprint string) (string, error) {
	if _, err := time.Parse(DateLayout, asOf); err != nil {
		return "", fmt.Errorf("%w: as-of date %q: %v", ErrInvalidKey, asOf, err)
	}
	if err := checkComponent("version", version); err != nil {
		return "", err
	}
	if err := checkComponent("fingerprint", fingerprint); err != nil {
		return "", err
	}
	return KeyPrefix + ":" + version + ":" + asOf + ":" + fingerprint, nil
}

func checkComponent(name, v string) error {
	if v == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidKey, name)
	}
	if strings.ContainsAny(v, ": \t\n") {
		return fmt.Errorf("%w: %s %q contains a separator", ErrInvalidKey, name, v)
	}
	return nil
}

// Fingerprint hashes a tradable symbol set. Order, case and duplicates do not
// change the result.
func Fingerprint(symbols []string) string {
	seen := make(map[string]struct{}, len(symbols))
	norm := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		norm = append(norm, s)
	}
	sort.Strings(norm)

	sum := sha256.Sum256([]byte(strings.Join(norm, "\n")))
	return hex.EncodeToString(sum[:])
}
