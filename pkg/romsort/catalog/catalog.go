// Package catalog parses ROM catalogs ("DAT" files) into an index keyed by
// content MD5.
//
// A catalog is an XML document whose root holds game elements, each carrying
// an optional region attribute and one or more rom children:
//
//	<datafile>
//	  <game name="Game" region="USA">
//	    <rom name="Game (USA).nes" size="131072" crc="deadbeef" md5="..."/>
//	  </game>
//	</datafile>
//
// The index is built once per run and is read-only afterwards.
package catalog

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/net/html/charset"
)

// DefaultRegion is used for games that do not declare a region.
const DefaultRegion = "Unknown"

// Entry is a single known-good ROM described by the catalog.
type Entry struct {
	// MD5 is the content hash the entry is keyed by, verbatim from the catalog.
	MD5 string `json:"md5" yaml:"md5"`

	// Name is the canonical file name the ROM is renamed to.
	Name string `json:"name" yaml:"name"`

	// Size is the declared size in bytes, kept in its original textual form.
	Size Optional[string] `json:"size" yaml:"size"`

	// CRC is the declared CRC32 as written in the catalog.
	CRC Optional[string] `json:"crc" yaml:"crc"`

	// SHA1 is informational only and never used for matching.
	SHA1 Optional[string] `json:"sha1" yaml:"sha1"`

	// Region is the sorting folder, inherited from the enclosing game.
	Region string `json:"region" yaml:"region"`

	// Game is the name of the enclosing game element.
	Game string `json:"game" yaml:"game"`
}

// Header is the optional <header> block of a catalog.
type Header struct {
	Name        string `xml:"name" json:"name" yaml:"name"`
	Description string `xml:"description" json:"description" yaml:"description"`
	Version     string `xml:"version" json:"version" yaml:"version"`
	Author      string `xml:"author" json:"author,omitempty" yaml:"author,omitempty"`
}

// Index maps content MD5 to catalog entries.
type Index struct {
	entries map[string]Entry
	header  Header
	games   int
	skipped int
}

// Find returns the entry for md5, if any.
func (idx *Index) Find(md5 string) (Entry, bool) {
	e, ok := idx.entries[md5]
	return e, ok
}

// Len returns the number of distinct hashes in the index.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Games returns the number of game elements read.
func (idx *Index) Games() int {
	return idx.games
}

// Skipped returns the number of rom elements rejected for lacking a hash or name.
func (idx *Index) Skipped() int {
	return idx.skipped
}

// Header returns the catalog header.
func (idx *Index) Header() Header {
	return idx.header
}

// Regions returns the distinct regions present in the index, sorted.
func (idx *Index) Regions() []string {
	seen := make(map[string]struct{})
	for _, e := range idx.entries {
		seen[e.Region] = struct{}{}
	}
	regions := make([]string, 0, len(seen))
	for r := range seen {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	return regions
}

// Build reads and parses the catalog at path.
func Build(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	idx, err := Parse(f)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return idx, nil
}

// Parse parses a catalog document from r.
// Any failure is reported as a *ParseError.
func Parse(r io.Reader) (*Index, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	idx := &Index{entries: make(map[string]Entry)}
	sawRoot := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if sawRoot {
				return nil, &ParseError{Err: fmt.Errorf("%w: <%s>", ErrMultipleRoots, t.Name.Local)}
			}
			sawRoot = true
			if err := idx.readRoot(dec); err != nil {
				return nil, &ParseError{Err: err}
			}
		case xml.CharData:
			if strings.TrimSpace(string(t)) != "" {
				return nil, &ParseError{Err: ErrStrayText}
			}
		}
	}

	if !sawRoot {
		return nil, &ParseError{Err: ErrNoRoot}
	}
	return idx, nil
}

type datGame struct {
	Name   string   `xml:"name,attr"`
	Region string   `xml:"region,attr"`
	Roms   []datRom `xml:"rom"`
}

type datRom struct {
	Name string `xml:"name,attr"`
	MD5  string `xml:"md5,attr"`
	CRC  string `xml:"crc,attr"`
	SHA1 string `xml:"sha1,attr"`
	Size string `xml:"size,attr"`
}

// readRoot consumes the children of the root element up to its end tag.
// Games are applied in document order so duplicate hashes resolve to the last one.
func (idx *Index) readRoot(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}

		switch t := tok.(type) {
		case xml.EndElement:
			return nil
		case xml.StartElement:
			switch t.Name.Local {
			case "header":
				if err := dec.DecodeElement(&idx.header, &t); err != nil {
					return err
				}
			case "game", "machine":
				var g datGame
				if err := dec.DecodeElement(&g, &t); err != nil {
					return err
				}
				idx.addGame(g)
			default:
				if err := dec.Skip(); err != nil {
					return err
				}
			}
		}
	}
}

func (idx *Index) addGame(g datGame) {
	idx.games++

	region := g.Region
	if region == "" {
		region = DefaultRegion
	}

	for _, rom := range g.Roms {
		if rom.MD5 == "" || rom.Name == "" {
			idx.skipped++
			continue
		}
		idx.entries[rom.MD5] = Entry{
			MD5:    rom.MD5,
			Name:   rom.Name,
			Size:   optionalString(rom.Size),
			CRC:    optionalString(rom.CRC),
			SHA1:   optionalString(rom.SHA1),
			Region: region,
			Game:   g.Name,
		}
	}
}
