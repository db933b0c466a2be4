package rpmmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repomdXML = `<?xml version="1.0" encoding="UTF-8"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo">
  <data type="primary">
    <location href="repodata/abc123-primary.xml.gz"/>
  </data>
  <data type="filelists">
    <location href="repodata/def456-filelists.xml.gz"/>
  </data>
  <data type="other">
    <location href="repodata/fff-other.xml.gz"/>
  </data>
</repomd>
`

const primaryXML = `<?xml version="1.0" encoding="UTF-8"?>
<metadata xmlns="http://linux.duke.edu/metadata/common" packages="2">
  <package type="rpm">
    <name>gimp</name>
    <arch>x86_64</arch>
    <version epoch="2" ver="2.10.38" rel="1.fc40"/>
    <summary>GNU Image Manipulation Program</summary>
    <description>GIMP lets you
draw and paint.</description>
    <packager>Fedora Project</packager>
    <checksum type="sha256" pkgid="YES">aaa111</checksum>
    <location href="Packages/g/gimp-2.10.38-1.fc40.x86_64.rpm"/>
  </package>
  <package type="rpm">
    <name>eog</name>
    <arch>x86_64</arch>
    <version epoch="0" ver="45.3" rel="1.fc40"/>
    <summary>Eye of GNOME</summary>
    <checksum type="sha256" pkgid="YES">bbb222</checksum>
    <location href="Packages/e/eog-45.3-1.fc40.x86_64.rpm"/>
  </package>
</metadata>
`

const filelistsXML = `<?xml version="1.0" encoding="UTF-8"?>
<filelists xmlns="http://linux.duke.edu/metadata/filelists" packages="1">
  <package pkgid="aaa111" name="gimp" arch="x86_64">
    <version epoch="2" ver="2.10.38" rel="1.fc40"/>
    <file>/usr/bin/gimp</file>
    <file type="dir">/usr/share/gimp</file>
    <file>/usr/share/applications/gimp.desktop</file>
  </package>
</filelists>
`

func TestParseRepomd(t *testing.T) {
	md, err := parseRepomd(strings.NewReader(repomdXML))
	require.NoError(t, err)

	assert.Equal(t, "repodata/abc123-primary.xml.gz", md.locationFor("primary"))
	assert.Equal(t, "repodata/def456-filelists.xml.gz", md.locationFor("filelists"))
	assert.Empty(t, md.locationFor("group"))
}

func TestParsePrimary(t *testing.T) {
	pkgs, err := parsePrimary(strings.NewReader(primaryXML))
	require.NoError(t, err)
	require.Len(t, pkgs, 2)

	gimp := pkgs[0]
	assert.Equal(t, "gimp", gimp.Name)
	assert.Equal(t, "x86_64", gimp.Arch)
	assert.Equal(t, "2:2.10.38-1.fc40", gimp.evr())
	assert.Equal(t, "GNU Image Manipulation Program", gimp.Summary)
	assert.Equal(t, "Fedora Project", gimp.Packager)
	assert.Equal(t, "YES", gimp.Checksum.PkgID)
	assert.Equal(t, "aaa111", gimp.Checksum.Value)
	assert.Equal(t, "Packages/g/gimp-2.10.38-1.fc40.x86_64.rpm", gimp.Location.Href)

	// A zero epoch stays out of the version string.
	assert.Equal(t, "45.3-1.fc40", pkgs[1].evr())
}

func TestParseFilelists(t *testing.T) {
	files, err := parseFilelists(strings.NewReader(filelistsXML))
	require.NoError(t, err)

	assert.Equal(t, []string{"/usr/bin/gimp", "/usr/share/applications/gimp.desktop"}, files["aaa111"])
}

func TestParsePrimaryMalformed(t *testing.T) {
	_, err := parsePrimary(strings.NewReader("<metadata><package><name>x</name>"))
	assert.Error(t, err)
}
