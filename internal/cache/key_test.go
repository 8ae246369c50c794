package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeKey_Format(t *testing.T) {
	key, err := MakeKey("2026-10-19", "v3", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "core:v3:2026-10-19:abc123", key)
}

func TestMakeKey_RejectsAmbiguousComponents(t *testing.T) {
	cases := []struct {
		name, asOf, version, fp string
	}{
		{"bad date", "19/10/2026", "v1", "fp"},
		{"empty version", "2026-10-19", "", "fp"},
		{"colon in version", "2026-10-19", "v1:2", "fp"},
		{"empty fingerprint", "2026-10-19", "v1", ""},
		{"colon in fingerprint", "2026-10-19", "v1", "a:b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := MakeKey(tc.asOf, tc.version, tc.fp)
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("expected ErrInvalidKey, got %v", err)
			}
		})
	}
}

func TestMakeKey_DistinctTriplesNeverCollide(t *testing.T) {
	dates := []string{"2026-10-19", "2026-10-20"}
	versions := []string{"v1", "v2", "v10"}
	fps := []string{Fingerprint([]string{"AAPL"}), Fingerprint([]string{"AAPL", "MSFT"}), "x"}

	seen := make(map[string]string)
	for _, d := range dates {
		for _, v := range versions {
			for _, f := range fps {
				key, err := MakeKey(d, v, f)
				require.NoError(t, err)
				triple := d + "|" + v + "|" + f
				if prev, ok := seen[key]; ok {
					t.Fatalf("key %s produced by %s and %s", key, prev, triple)
				}
				seen[key] = triple
			}
		}
	}
	assert.Len(t, seen, len(dates)*len(versions)*len(fps))
}

func TestFingerprint_OrderAndCaseInsensitive(t *testing.T) {
	a := Fingerprint([]string{"EQNR.OL", "aapl", "MSFT"})
	b := Fingerprint([]string{"msft", "AAPL", "eqnr.ol", "AAPL"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Fingerprint([]string{"AAPL", "MSFT"}))
	assert.Len(t, a, 64)
}
