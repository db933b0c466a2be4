package debian

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTagFile(t *testing.T) {
	input := `Package: gimp
Version: 2.10.38-1
Architecture: amd64
Maintainer: Debian GNOME Maintainers <pkg-gnome@lists.debian.org>
Filename: pool/main/g/gimp/gimp_2.10.38-1_amd64.deb
Description: GNU Image Manipulation Program
 GIMP lets you draw, paint and edit images.
 .
 Many image formats are supported.

Package: eog
Version: 45.3-1
Architecture: amd64
Description: Eye of GNOME graphics viewer program
`

	sections, err := ParseTagFile(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, sections, 2)

	gimp := sections[0]
	assert.Equal(t, "gimp", gimp["Package"])
	assert.Equal(t, "2.10.38-1", gimp["Version"])
	assert.Equal(t, "pool/main/g/gimp/gimp_2.10.38-1_amd64.deb", gimp["Filename"])
	assert.Equal(t, "GNU Image Manipulation Program\nGIMP lets you draw, paint and edit images.\n.\nMany image formats are supported.",
		gimp["Description"])

	assert.Equal(t, "eog", sections[1]["Package"])
}

func TestParseTagFileErrors(t *testing.T) {
	_, err := ParseTagFile(strings.NewReader(" orphan continuation\n"))
	assert.Error(t, err)

	_, err = ParseTagFile(strings.NewReader("no colon here\n"))
	assert.Error(t, err)
}

func TestSplitDescription(t *testing.T) {
	summary, long := splitDescription("GNU Image Manipulation Program\nGIMP lets you edit images.")
	assert.Equal(t, "GNU Image Manipulation Program", summary)
	assert.Equal(t, "GIMP lets you edit images.", long)

	summary, long = splitDescription("one-liner only")
	assert.Equal(t, "one-liner only", summary)
	assert.Empty(t, long)
}

func TestRenderDescriptionHTML(t *testing.T) {
	long := "GIMP lets you draw & paint.\n.\nMany <image> formats are supported."
	assert.Equal(t,
		"<p>GIMP lets you draw &amp; paint.</p><p>Many &lt;image&gt; formats are supported.</p>",
		renderDescriptionHTML(long))

	assert.Empty(t, renderDescriptionHTML(""))
	assert.Empty(t, renderDescriptionHTML("."))
}
