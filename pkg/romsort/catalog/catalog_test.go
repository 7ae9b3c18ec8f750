package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDAT = `<?xml version="1.0"?>
<!DOCTYPE datafile PUBLIC "-//Logiqx//DTD ROM Management Datafile//EN" "http://www.logiqx.com/Dats/datafile.dtd">
<datafile>
	<header>
		<name>Nintendo - Nintendo Entertainment System</name>
		<description>Nintendo - NES (20240101)</description>
		<version>20240101</version>
	</header>
	<game name="Alpha" region="USA">
		<description>Alpha</description>
		<rom name="Alpha (USA).nes" size="131072" crc="deadbeef" md5="aaaa" sha1="1111"/>
		<rom name="Alpha (USA) (Alt).nes" md5="bbbb"/>
	</game>
	<game name="Beta">
		<rom name="Beta.nes" size="" crc="" md5="cccc"/>
	</game>
	<game name="Gamma" region="Europe">
		<rom name="no-hash.nes" size="10"/>
		<rom md5="dddd" size="10"/>
	</game>
</datafile>
`

func TestParse(t *testing.T) {
	idx, err := Parse(strings.NewReader(sampleDAT))
	require.NoError(t, err)

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 3, idx.Games())
	assert.Equal(t, 2, idx.Skipped())
	assert.Equal(t, "20240101", idx.Header().Version)
	assert.Equal(t, "Nintendo - Nintendo Entertainment System", idx.Header().Name)

	alpha, ok := idx.Find("aaaa")
	require.True(t, ok)
	assert.Equal(t, "Alpha (USA).nes", alpha.Name)
	assert.Equal(t, "USA", alpha.Region)
	assert.Equal(t, "Alpha", alpha.Game)
	assert.Equal(t, "131072", alpha.Size.OrElse(""))
	assert.Equal(t, "deadbeef", alpha.CRC.OrElse(""))
	assert.Equal(t, "1111", alpha.SHA1.OrElse(""))

	alt, ok := idx.Find("bbbb")
	require.True(t, ok)
	assert.False(t, alt.Size.IsSet())
	assert.False(t, alt.CRC.IsSet())
	assert.Equal(t, "USA", alt.Region, "region is inherited by every rom of a game")
}

func TestParse_DefaultRegion(t *testing.T) {
	idx, err := Parse(strings.NewReader(sampleDAT))
	require.NoError(t, err)

	beta, ok := idx.Find("cccc")
	require.True(t, ok)
	assert.Equal(t, DefaultRegion, beta.Region)
	assert.False(t, beta.Size.IsSet(), "empty size attribute counts as undeclared")
	assert.False(t, beta.CRC.IsSet(), "empty crc attribute counts as undeclared")
}

func TestParse_SkipsRomsWithoutHashOrName(t *testing.T) {
	idx, err := Parse(strings.NewReader(sampleDAT))
	require.NoError(t, err)

	_, ok := idx.Find("dddd")
	assert.False(t, ok)
	assert.NotContains(t, idx.Regions(), "Europe")
}

func TestParse_DuplicateHashLastWins(t *testing.T) {
	doc := `<datafile>
		<game region="USA"><rom name="first.nes" md5="same"/></game>
		<machine region="Japan"><rom name="second.nes" md5="same"/></machine>
	</datafile>`

	idx, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 1, idx.Len())

	e, ok := idx.Find("same")
	require.True(t, ok)
	assert.Equal(t, "second.nes", e.Name)
	assert.Equal(t, "Japan", e.Region)
}

func TestParse_HashesAreVerbatim(t *testing.T) {
	doc := `<datafile><game><rom name="x.nes" md5="NOT-A-HASH"/></game></datafile>`

	idx, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	_, ok := idx.Find("NOT-A-HASH")
	assert.True(t, ok)
	_, ok = idx.Find("not-a-hash")
	assert.False(t, ok, "lookup is an exact string match")
}

func TestParse_OnlyTopLevelGames(t *testing.T) {
	doc := `<datafile>
		<group><game region="USA"><rom name="nested.nes" md5="nested"/></game></group>
		<game region="USA"><rom name="top.nes" md5="top"/></game>
	</datafile>`

	idx, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	_, ok := idx.Find("nested")
	assert.False(t, ok)
	_, ok = idx.Find("top")
	assert.True(t, ok)
}

func TestParse_Latin1(t *testing.T) {
	// "Pokémon" with é encoded as a single ISO-8859-1 byte.
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<datafile><game region=\"France\"><rom name=\"Pok\xe9mon.nes\" md5=\"p\"/></game></datafile>"

	idx, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	e, ok := idx.Find("p")
	require.True(t, ok)
	assert.Equal(t, "Pokémon.nes", e.Name)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty document", ""},
		{"whitespace only", "   \n\t"},
		{"unclosed root", "<datafile><game>"},
		{"mismatched tags", "<datafile><game></rom></datafile>"},
		{"two roots", "<a></a><b></b>"},
		{"text after root", "<datafile></datafile>garbage"},
		{"not markup", "this is not a catalog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.True(t, IsParseError(err), "got %T: %v", err, err)
		})
	}
}

func TestBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nes.dat")
	require.NoError(t, os.WriteFile(path, []byte(sampleDAT), 0o644))

	idx, err := Build(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"USA", "Unknown"}, idx.Regions())
}

func TestBuild_ParseErrorCarriesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.dat")
	require.NoError(t, os.WriteFile(path, []byte("<datafile>"), 0o644))

	_, err := Build(path)
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, path, pe.Path)
	assert.Contains(t, err.Error(), path)
}

func TestBuild_MissingFile(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "missing.dat"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, IsParseError(err))
}

func TestOptional(t *testing.T) {
	v, ok := Some("42").Get()
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	_, ok = None[string]().Get()
	assert.False(t, ok)
	assert.Equal(t, "fallback", None[string]().OrElse("fallback"))

	data, err := json.Marshal(struct {
		A Optional[string] `json:"a"`
		B Optional[string] `json:"b"`
	}{A: Some("x"), B: None[string]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":null}`, string(data))
}
