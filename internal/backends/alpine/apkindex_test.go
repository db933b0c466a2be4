package alpine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAPKIndex(t *testing.T) {
	input := `C:Q1p78yvTLG094tHE1+dToJGbmYzQE=
P:gimp
V:2.10.38-r0
A:x86_64
T:GNU Image Manipulation Program
m:Natanael Copa <ncopa@alpinelinux.org>

P:eog
V:45.3-r0
A:x86_64
T:Eye of GNOME
`

	entries, err := parseAPKIndex(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	gimp := entries[0]
	assert.Equal(t, "gimp", gimp.Name)
	assert.Equal(t, "2.10.38-r0", gimp.Version)
	assert.Equal(t, "x86_64", gimp.Arch)
	assert.Equal(t, "GNU Image Manipulation Program", gimp.Description)
	assert.Equal(t, "Natanael Copa <ncopa@alpinelinux.org>", gimp.Maintainer)

	eog := entries[1]
	assert.Equal(t, "eog", eog.Name)
	assert.Empty(t, eog.Maintainer)
}

func TestParseAPKIndexContinuationLines(t *testing.T) {
	// A line without a colon continues the previous logical line.
	input := "P:gimp\nT:A long description\nthat wraps around\nV:1.0-r0\nA:x86_64\n"

	entries, err := parseAPKIndex(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "A long description that wraps around", entries[0].Description)
}

func TestParseAPKIndexEmpty(t *testing.T) {
	entries, err := parseAPKIndex(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
