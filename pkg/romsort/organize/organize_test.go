package organize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jamesainslie/romsort/pkg/romsort/catalog"
	"github.com/jamesainslie/romsort/pkg/romsort/digest"
	"github.com/jamesainslie/romsort/pkg/romsort/placement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rom is a catalog row backed by real file content.
type rom struct {
	region  string
	name    string
	content []byte
	size    string // declared size; "-" omits the attribute
	crc     string // declared crc; "-" omits the attribute
}

func (r rom) result(t *testing.T) digest.Result {
	t.Helper()
	res, err := digest.Reader(bytes.NewReader(r.content))
	require.NoError(t, err)
	return res
}

// buildIndex returns an index declaring each rom with its real md5 and,
// unless overridden, its real size and crc.
func buildIndex(t *testing.T, roms ...rom) *catalog.Index {
	t.Helper()
	var b strings.Builder
	b.WriteString("<datafile>\n")
	for _, r := range roms {
		res := r.result(t)
		attrs := fmt.Sprintf("name=%q md5=%q", r.name, res.MD5)
		switch r.size {
		case "":
			attrs += fmt.Sprintf(" size=\"%d\"", res.Size)
		case "-":
		default:
			attrs += fmt.Sprintf(" size=%q", r.size)
		}
		switch r.crc {
		case "":
			attrs += fmt.Sprintf(" crc=%q", res.CRC32)
		case "-":
		default:
			attrs += fmt.Sprintf(" crc=%q", r.crc)
		}
		fmt.Fprintf(&b, "<game region=%q><rom %s/></game>\n", r.region, attrs)
	}
	b.WriteString("</datafile>")

	idx, err := catalog.Parse(strings.NewReader(b.String()))
	require.NoError(t, err)
	return idx
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func kinds(outs []Outcome) []Kind {
	ks := make([]Kind, len(outs))
	for i, o := range outs {
		ks[i] = o.Kind
	}
	return ks
}

func run(t *testing.T, opts Options, root string, idx *catalog.Index, twilight bool) *Report {
	t.Helper()
	report, err := New(opts).Run(context.Background(), root, idx, twilight)
	require.NoError(t, err)
	return report
}

func TestRun_GameScenario(t *testing.T) {
	root := t.TempDir()
	game := rom{region: "USA", name: "Game (USA).nes", content: bytes.Repeat([]byte{0xA5}, 131072)}
	idx := buildIndex(t, game)

	src := filepath.Join(root, "dump", "game.nes")
	writeFile(t, src, game.content)

	report := run(t, Options{}, root, idx, false)

	want := filepath.Join(root, "USA", "Game (USA).nes")
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, placement.Moved, report.Outcomes[0].Kind)
	assert.Equal(t, src, report.Outcomes[0].Path)
	assert.Equal(t, want, report.Outcomes[0].Dest)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, game.content, data)
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))

	again := run(t, Options{}, root, idx, false)
	assert.Empty(t, again.Outcomes, "second run reports nothing for a placed file")
	assert.Equal(t, 1, again.Stats.InPlace)
	assert.Equal(t, 0, again.Stats.Moved)
}

func TestRun_SizeMismatchScenario(t *testing.T) {
	root := t.TempDir()
	short := rom{region: "USA", name: "Game (USA).nes", content: bytes.Repeat([]byte{0xA5}, 131000), size: "131072"}
	idx := buildIndex(t, short)

	src := filepath.Join(root, "game.nes")
	writeFile(t, src, short.content)

	report := run(t, Options{}, root, idx, false)

	assert.Equal(t, []Kind{placement.SizeMismatch}, kinds(report.Outcomes))
	_, err := os.Stat(src)
	assert.NoError(t, err, "file stays at its original path")
	_, err = os.Stat(filepath.Join(root, "USA"))
	assert.True(t, os.IsNotExist(err), "no region folder for a rejected file")
}

func TestRun_CRCMismatchNeverMoved(t *testing.T) {
	root := t.TempDir()
	bad := rom{region: "Europe", name: "Bad.sfc", content: []byte("corrupted dump"), crc: "00000000"}
	idx := buildIndex(t, bad)

	src := filepath.Join(root, "bad.sfc")
	writeFile(t, src, bad.content)

	for _, twilight := range []bool{false, true} {
		report := run(t, Options{}, root, idx, twilight)
		assert.Equal(t, []Kind{placement.CRCMismatch}, kinds(report.Outcomes))
		_, err := os.Stat(src)
		require.NoError(t, err)
	}
	_, err := os.Stat(filepath.Join(root, "Europe"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_UnmatchedLeftInPlace(t *testing.T) {
	root := t.TempDir()
	idx := buildIndex(t, rom{region: "USA", name: "Known.nes", content: []byte("known")})

	src := filepath.Join(root, "stranger.md")
	writeFile(t, src, []byte("not in the catalog"))

	report := run(t, Options{}, root, idx, false)

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, placement.Unmatched, report.Outcomes[0].Kind)
	assert.Nil(t, report.Outcomes[0].Entry)
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "not in the catalog", string(data))
}

func TestRun_TwilightBatches(t *testing.T) {
	root := t.TempDir()
	roms := make([]rom, 201)
	for i := range roms {
		roms[i] = rom{region: "USA", name: fmt.Sprintf("Game %03d.nes", i), content: []byte(fmt.Sprintf("rom-%03d", i))}
		writeFile(t, filepath.Join(root, "src", fmt.Sprintf("%03d.nes", i)), roms[i].content)
	}
	idx := buildIndex(t, roms...)

	report := run(t, Options{}, root, idx, true)
	require.Equal(t, 201, report.Stats.Moved)

	batch1, err := os.ReadDir(filepath.Join(root, "USA", "Batch_1"))
	require.NoError(t, err)
	assert.Len(t, batch1, 200)

	batch2, err := os.ReadDir(filepath.Join(root, "USA", "Batch_2"))
	require.NoError(t, err)
	require.Len(t, batch2, 1)

	// Candidates are placed in path order, so the last source lands in Batch_2.
	assert.Equal(t, "Game 200.nes", batch2[0].Name())
	assert.Equal(t, placement.RegionState{Batch: 2, Items: 1}, report.Regions["USA"])
}

func TestRun_Idempotent(t *testing.T) {
	for _, twilight := range []bool{false, true} {
		t.Run(fmt.Sprintf("twilight=%v", twilight), func(t *testing.T) {
			root := t.TempDir()
			var roms []rom
			for i, region := range []string{"USA", "Japan", "Europe", "USA", "Japan"} {
				r := rom{region: region, name: fmt.Sprintf("Title %d.bin", i), content: []byte(fmt.Sprintf("payload %d", i))}
				roms = append(roms, r)
				writeFile(t, filepath.Join(root, "in", fmt.Sprintf("%d.BIN", i)), r.content)
			}
			idx := buildIndex(t, roms...)

			first := run(t, Options{}, root, idx, twilight)
			require.Equal(t, 5, first.Stats.Moved)

			second := run(t, Options{}, root, idx, twilight)
			assert.Equal(t, 0, second.Stats.Moved)
			assert.Equal(t, 5, second.Stats.InPlace)
			assert.Empty(t, second.Outcomes)
		})
	}
}

func TestRun_MoveFailureIsIsolated(t *testing.T) {
	root := t.TempDir()
	a := rom{region: "USA", name: "A.nes", content: []byte("aaa")}
	b := rom{region: "USA", name: "B.nes", content: []byte("bbb")}
	c := rom{region: "USA", name: "C.nes", content: []byte("ccc")}
	idx := buildIndex(t, a, b, c)
	for name, r := range map[string]rom{"a.nes": a, "b.nes": b, "c.nes": c} {
		writeFile(t, filepath.Join(root, name), r.content)
	}

	cause := errors.New("disk on fire")
	var moved []string
	mover := func(from, to string) error {
		if filepath.Base(from) == "b.nes" {
			return cause
		}
		moved = append(moved, filepath.Base(to))
		return nil
	}

	report := run(t, Options{Mover: mover}, root, idx, false)

	assert.Equal(t, []Kind{placement.Moved, placement.MoveFailed, placement.Moved}, kinds(report.Outcomes))
	assert.ErrorIs(t, report.Outcomes[1].Err, cause)
	assert.Equal(t, []string{"A.nes", "C.nes"}, moved)
	assert.False(t, report.Succeeded())
	assert.Equal(t, 2, report.Regions["USA"].Items)
}

// failingDigester fails for one base name and delegates the rest.
type failingDigester struct {
	name string
}

func (d failingDigester) Digest(path string) (digest.Result, error) {
	if filepath.Base(path) == d.name {
		return digest.Result{}, &digest.IOError{Path: path, Err: os.ErrPermission}
	}
	return digest.File(path)
}

func TestRun_ReadFailure(t *testing.T) {
	root := t.TempDir()
	ok := rom{region: "USA", name: "Ok.nes", content: []byte("fine")}
	idx := buildIndex(t, ok)
	writeFile(t, filepath.Join(root, "locked.nes"), []byte("secret"))
	writeFile(t, filepath.Join(root, "ok.nes"), ok.content)

	report := run(t, Options{Digester: failingDigester{name: "locked.nes"}}, root, idx, false)

	require.Equal(t, []Kind{placement.ReadFailed, placement.Moved}, kinds(report.Outcomes))
	assert.True(t, digest.IsIOError(report.Outcomes[0].Err))
	assert.Equal(t, 1, report.Stats.ReadFailed)
}

func TestRun_CandidateFilter(t *testing.T) {
	root := t.TempDir()
	upper := rom{region: "USA", name: "Upper.nes", content: []byte("upper")}
	text := rom{region: "USA", name: "Notes.nes", content: []byte("notes")}
	idx := buildIndex(t, upper, text)

	writeFile(t, filepath.Join(root, "UPPER.NES"), upper.content)
	writeFile(t, filepath.Join(root, "notes.txt"), text.content)

	report := run(t, Options{}, root, idx, false)

	assert.Equal(t, 1, report.Stats.Candidates)
	assert.Equal(t, 1, report.Stats.Moved)
	_, err := os.Stat(filepath.Join(root, "notes.txt"))
	assert.NoError(t, err, "unrecognized extensions are never touched")
}

func TestRun_Exclude(t *testing.T) {
	root := t.TempDir()
	r := rom{region: "USA", name: "Kept.nes", content: []byte("kept")}
	idx := buildIndex(t, r)

	writeFile(t, filepath.Join(root, "skip", "kept.nes"), r.content)
	writeFile(t, filepath.Join(root, "other.nes"), []byte("other"))

	report := run(t, Options{Exclude: []string{"skip", "other.*"}}, root, idx, false)

	assert.Equal(t, 0, report.Stats.Candidates)
	_, err := os.Stat(filepath.Join(root, "skip", "kept.nes"))
	assert.NoError(t, err)
}

func TestRun_DryRun(t *testing.T) {
	root := t.TempDir()
	r := rom{region: "USA", name: "Dry.nes", content: []byte("dry")}
	idx := buildIndex(t, r)
	src := filepath.Join(root, "dry.nes")
	writeFile(t, src, r.content)

	var seen []Outcome
	report := run(t, Options{DryRun: true, OnOutcome: func(o Outcome) { seen = append(seen, o) }}, root, idx, true)

	assert.True(t, report.DryRun)
	assert.Equal(t, []Kind{placement.Moved}, kinds(report.Outcomes))
	assert.Equal(t, report.Outcomes, seen)
	assert.Equal(t, filepath.Join(root, "USA", "Batch_1", "Dry.nes"), report.Outcomes[0].Dest)

	_, err := os.Stat(src)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "USA"))
	assert.True(t, os.IsNotExist(err))
}

// trackingDigester records Moved notifications.
type trackingDigester struct {
	digest.FileDigester
	mu    sync.Mutex
	moves []string
}

func (d *trackingDigester) Moved(from, to string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.moves = append(d.moves, filepath.Base(from)+">"+filepath.Base(to))
}

func TestRun_NotifiesMoveTracker(t *testing.T) {
	root := t.TempDir()
	r := rom{region: "USA", name: "Tracked.nes", content: []byte("tracked")}
	idx := buildIndex(t, r)
	writeFile(t, filepath.Join(root, "t.nes"), r.content)

	d := &trackingDigester{}
	run(t, Options{Digester: d}, root, idx, false)

	assert.Equal(t, []string{"t.nes>Tracked.nes"}, d.moves)
}

func TestRun_RootNotDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.nes")
	writeFile(t, file, []byte("x"))

	_, err := New(Options{}).Run(context.Background(), file, buildIndex(t), false)
	assert.ErrorIs(t, err, ErrRootNotDir)

	_, err = New(Options{}).Run(context.Background(), filepath.Join(t.TempDir(), "missing"), buildIndex(t), false)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_Cancelled(t *testing.T) {
	root := t.TempDir()
	r := rom{region: "USA", name: "C.nes", content: []byte("c")}
	idx := buildIndex(t, r)
	src := filepath.Join(root, "c.nes")
	writeFile(t, src, r.content)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(Options{}).Run(ctx, root, idx, false)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, report.Outcomes)

	_, err = os.Stat(src)
	assert.NoError(t, err)
}

func TestRun_CancelDuringPlacement(t *testing.T) {
	root := t.TempDir()
	var roms []rom
	for i := 0; i < 20; i++ {
		r := rom{region: "USA", name: fmt.Sprintf("G%02d.nes", i), content: []byte(fmt.Sprintf("g%02d", i))}
		roms = append(roms, r)
		writeFile(t, filepath.Join(root, fmt.Sprintf("%02d.nes", i)), r.content)
	}
	idx := buildIndex(t, roms...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var n int
	opts := Options{
		Workers: 2,
		OnOutcome: func(Outcome) {
			n++
			if n == 3 {
				cancel()
			}
		},
	}
	report, err := New(opts).Run(ctx, root, idx, false)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, report.Stats.Moved, "no file is placed after cancellation")
}

func TestIsCandidate(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a.nes", true},
		{"A.NES", true},
		{"dir/b.Sfc", true},
		{"c.smc", true},
		{"d.bin", true},
		{"e.md", true},
		{"f.zip", true},
		{"g.7z", false},
		{"README", false},
		{"nes", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsCandidate(tt.path), tt.path)
	}
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"/roms/skip/a.nes", "/roms/skip", true},
		{"/roms/skipper/a.nes", "/roms/skip", false},
		{"/roms/a.nes", "*.nes", true},
		{"/roms/.git", ".git", true},
		{"/roms/a.nes", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesPattern(tt.path, tt.pattern), "%s ~ %s", tt.path, tt.pattern)
	}
}
