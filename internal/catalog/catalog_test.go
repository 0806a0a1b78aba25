package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestModels_Has28SortedEntries(t *testing.T) {
	ms := Models()
	require.Len(t, ms, 28)
	for i := 1; i < len(ms); i++ {
		assert.Less(t, string(ms[i-1]), string(ms[i]))
	}
	for _, m := range ms {
		assert.True(t, strings.HasPrefix(string(m), Prefix), m)
	}
}

func TestNormalizeAndValidate_StrippedRoundTrip(t *testing.T) {
	for _, m := range Models() {
		stripped := strings.TrimPrefix(string(m), Prefix)

		got, err := NormalizeAndValidate(stripped)
		require.NoError(t, err, stripped)
		assert.Equal(t, m, got)

		got, err = NormalizeAndValidate(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
}

func TestNormalizeAndValidate_Rejects(t *testing.T) {
	cases := []string{"XJ9", "WD-XJ9", "a1", "wd-A1", "", "WD-", "G3P600"}
	for _, raw := range cases {
		got, err := NormalizeAndValidate(raw)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, ErrInvalidProduct), raw)
		assert.Empty(t, got)

		var inv *InvalidProductError
		require.True(t, errors.As(err, &inv))
		assert.Equal(t, raw, inv.Raw)
		assert.True(t, strings.HasPrefix(inv.Normalized, Prefix))
	}
}

func TestNormalizeAndValidate_TrimsWhitespace(t *testing.T) {
	got, err := NormalizeAndValidate("  A1 ")
	require.NoError(t, err)
	assert.Equal(t, ProductID("WD-A1"), got)
}

func TestNormalizeAndValidate_XJ9Normalized(t *testing.T) {
	_, err := NormalizeAndValidate("XJ9")
	var inv *InvalidProductError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "WD-XJ9", inv.Normalized)
}

func TestNormalizeAndValidate_PropertyUnknownRejected(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		raw := rapid.StringMatching(`[A-Za-z0-9-]{0,12}`).Draw(rt, "raw")
		normalized := Normalize(raw)

		id, err := NormalizeAndValidate(raw)
		if IsValid(ProductID(normalized)) {
			if err != nil {
				rt.Fatalf("valid %q rejected: %v", raw, err)
			}
			if string(id) != normalized {
				rt.Fatalf("got %q want %q", id, normalized)
			}
			return
		}
		if !errors.Is(err, ErrInvalidProduct) {
			rt.Fatalf("expected invalid for %q, got id=%q err=%v", raw, id, err)
		}
		if id != "" {
			rt.Fatalf("invalid input produced id %q", id)
		}
	})
}

func TestCandidates(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"hi", nil},
		{"A1, it's leaking", []string{"A1"}},
		{"XJ9 model broken", []string{"XJ9"}},
		{"my wd-g3p600-w is slow", []string{"WD-G3P600-W"}},
		{"WD A1", []string{"A1"}},
		{"it broke the 2nd time after 30min", nil},
		{"RO-G2 and ro-g2 again", []string{"RO-G2"}},
		{"10UA filter", []string{"10UA"}},
		{"what's your return policy?", nil},
		{"still broken, the display now shows error E1", nil},
		{"error code E4 on the screen", nil},
		{"it flashes E2 code", nil},
		{"my A1 error light is on", []string{"A1"}},
		{"error XJ9", nil},
		{"WD-E1 is my model", []string{"WD-E1"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Candidates(tt.text))
		})
	}
}

func TestLooksLikeDisplayCode(t *testing.T) {
	assert.True(t, LooksLikeDisplayCode("E1"))
	assert.True(t, LooksLikeDisplayCode("F03"))
	assert.False(t, LooksLikeDisplayCode("WD-E1"))
	assert.False(t, LooksLikeDisplayCode("XJ9"))
	assert.False(t, LooksLikeDisplayCode("G3P700"))
}
