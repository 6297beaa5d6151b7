// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package industry

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"42209.0", "42209"},
		{"42209.00", "42209"},
		{" 42209 ", "42209"},
		{"42209", "42209"},
		{"42209.5", "42209.5"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeCode(tc.input))
		})
	}
}

// manufacturingRows is a slice of the real code list around 42209
// (construction) and 10 (food manufacturing).
func manufacturingRows() []RawCode {
	return []RawCode{
		{"42", "F42", "전문직별 공사업"},
		{"422", "F422", "건물설비 설치 공사업"},
		{"4220", "F4220", "건물설비 설치 공사업"},
		{"42209.0", "F42209", "기타 건물설비 설치 공사업"},
		{"10", "C10", "식료품 제조업"},
		{"107", "C107", "기타 식품 제조업"},
	}
}

func TestBuildAndLookup(t *testing.T) {
	h := Build(manufacturingRows())

	chain, ok := h.Lookup("42209")
	require.True(t, ok)

	expected := Chain{
		Depth1Code: "F", Depth1Name: "건설업",
		Depth2Code: "42", Depth2Name: "전문직별 공사업",
		Depth3Code: "422", Depth3Name: "건물설비 설치 공사업",
		Depth4Code: "4220", Depth4Name: "건물설비 설치 공사업",
		Depth5Code: "42209", Depth5Name: "기타 건물설비 설치 공사업",
	}
	if diff := cmp.Diff(expected, chain); diff != "" {
		t.Errorf("chain mismatch (-want +got):\n%s", diff)
	}

	// Float-formatted codes resolve after normalization.
	normalized, ok := h.Lookup("42209.0")
	require.True(t, ok)
	assert.Equal(t, chain, normalized)

	// Partial chains keep the levels the code list resolves.
	partial, ok := h.Lookup("107")
	require.True(t, ok)
	assert.Equal(t, "C", partial.Depth1Code)
	assert.Equal(t, "제조업", partial.Depth1Name)
	assert.Equal(t, "10", partial.Depth2Code)
	assert.Equal(t, "107", partial.Depth3Code)
	assert.Empty(t, partial.Depth4Code)
	assert.Empty(t, partial.Depth5Code)

	_, ok = h.Lookup("99999")
	assert.False(t, ok)
}

func TestChainsDeduplicate(t *testing.T) {
	rows := manufacturingRows()
	h := Build(rows)

	chains := h.Chains()

	seen := map[Chain]bool{}
	for _, c := range chains {
		assert.False(t, seen[c], "duplicate chain %+v", c)
		seen[c] = true
	}
}

func TestChainRowRoundTrip(t *testing.T) {
	h := Build(manufacturingRows())

	chain, ok := h.Lookup("42209")
	require.True(t, ok)

	row := chain.Row()
	require.Len(t, row, len(ChainHeader))

	assert.Equal(t, chain, ChainFromRow(row))
}

func TestFromChains(t *testing.T) {
	original := Build(manufacturingRows())

	rebuilt := FromChains(original.Chains())

	for _, code := range []string{"42", "422", "4220", "42209", "10", "107"} {
		want, ok := original.Lookup(code)
		require.True(t, ok, code)

		got, ok := rebuilt.Lookup(code)
		require.True(t, ok, code)
		assert.Equal(t, want, got, code)
	}
}
