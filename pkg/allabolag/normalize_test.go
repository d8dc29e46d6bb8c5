package allabolag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOrgNumber(t *testing.T) {
	assert.Equal(t, "5566778899", NormalizeOrgNumber("556677-8899"))
	assert.Equal(t, "5566778899", NormalizeOrgNumber("556677 8899"))
	assert.Equal(t, "5566778899", NormalizeOrgNumber("5566778899"))
	assert.Equal(t, "", NormalizeOrgNumber("no digits"))
}

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Acme AB", "acme"},
		{"ACME Aktiebolag", "acme"},
		{"Åkeri & Söner HB", "akeri soner"},
		{"Nordic-Tech, Холдинг AB", "nordic tech холдинг"},
		{"AB", "ab"}, // a bare legal form is kept, never emptied
		{"   Spaced   Out   ", "spaced out"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeName(tc.in), "input %q", tc.in)
	}
}

func TestSameCompanyName(t *testing.T) {
	assert.True(t, SameCompanyName("Acme AB", "ACME Aktiebolag"))
	assert.True(t, SameCompanyName("Åkeri & Söner", "Akeri Soner HB"))
	assert.False(t, SameCompanyName("Acme AB", "Beta AB"))
	assert.False(t, SameCompanyName("", ""))
}
