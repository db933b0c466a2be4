package rpmmd

import (
	"encoding/xml"
	"fmt"
	"io"
)

// repomd models the slice of repodata/repomd.xml needed to locate the
// metadata files.
type repomd struct {
	Data []repomdData `xml:"data"`
}

type repomdData struct {
	Type     string `xml:"type,attr"`
	Location struct {
		Href string `xml:"href,attr"`
	} `xml:"location"`
}

func parseRepomd(r io.Reader) (*repomd, error) {
	var md repomd
	if err := xml.NewDecoder(r).Decode(&md); err != nil {
		return nil, fmt.Errorf("parse repomd.xml: %w", err)
	}
	return &md, nil
}

// locationFor returns the href of the metadata file of the given type
// ("primary", "filelists"), or "".
func (md *repomd) locationFor(dataType string) string {
	for _, d := range md.Data {
		if d.Type == dataType {
			return d.Location.Href
		}
	}
	return ""
}

// primaryPackage is one <package> element of primary.xml.
type primaryPackage struct {
	Name    string `xml:"name"`
	Arch    string `xml:"arch"`
	Version struct {
		Epoch string `xml:"epoch,attr"`
		Ver   string `xml:"ver,attr"`
		Rel   string `xml:"rel,attr"`
	} `xml:"version"`
	Summary     string `xml:"summary"`
	Description string `xml:"description"`
	Packager    string `xml:"packager"`
	Checksum    struct {
		PkgID string `xml:"pkgid,attr"`
		Value string `xml:",chardata"`
	} `xml:"checksum"`
	Location struct {
		Href string `xml:"href,attr"`
	} `xml:"location"`
}

// evr renders the package version in epoch:version-release form, leaving
// out a zero epoch.
func (p *primaryPackage) evr() string {
	v := p.Version.Ver
	if p.Version.Rel != "" {
		v += "-" + p.Version.Rel
	}
	if p.Version.Epoch != "" && p.Version.Epoch != "0" {
		v = p.Version.Epoch + ":" + v
	}
	return v
}

// parsePrimary streams the <package> elements of primary.xml; the file
// can be large, so it is never decoded as one document.
func parsePrimary(r io.Reader) ([]primaryPackage, error) {
	dec := xml.NewDecoder(r)
	var pkgs []primaryPackage
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return pkgs, nil
		} else if err != nil {
			return nil, fmt.Errorf("parse primary.xml: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "package" {
			continue
		}
		var pkg primaryPackage
		if err := dec.DecodeElement(&pkg, &start); err != nil {
			return nil, fmt.Errorf("parse primary.xml package: %w", err)
		}
		pkgs = append(pkgs, pkg)
	}
}

type filelistsPackage struct {
	PkgID string `xml:"pkgid,attr"`
	Files []struct {
		Type string `xml:"type,attr"`
		Path string `xml:",chardata"`
	} `xml:"file"`
}

// parseFilelists streams filelists.xml and returns pkgid → regular file
// paths; directory and ghost entries are skipped.
func parseFilelists(r io.Reader) (map[string][]string, error) {
	dec := xml.NewDecoder(r)
	files := make(map[string][]string)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return files, nil
		} else if err != nil {
			return nil, fmt.Errorf("parse filelists.xml: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "package" {
			continue
		}
		var pkg filelistsPackage
		if err := dec.DecodeElement(&pkg, &start); err != nil {
			return nil, fmt.Errorf("parse filelists.xml package: %w", err)
		}
		for _, f := range pkg.Files {
			if f.Type != "" {
				continue
			}
			files[pkg.PkgID] = append(files[pkg.PkgID], f.Path)
		}
	}
}
