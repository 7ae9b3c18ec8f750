// Package placement decides where a verified file belongs and keeps the
// per-region batch counters used when output folders are size-capped.
package placement

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/jamesainslie/romsort/pkg/romsort/catalog"
	"github.com/jamesainslie/romsort/pkg/romsort/digest"
	"github.com/jamesainslie/romsort/pkg/romsort/relocate"
)

// BatchThreshold is the number of files a Batch_n folder holds before the
// next one is started.
const BatchThreshold = 200

// BatchPrefix names batch folders: Batch_1, Batch_2, ...
const BatchPrefix = "Batch_"

// ErrUnsafePath is returned when a catalog region or name would place a file
// outside its region folder.
var ErrUnsafePath = errors.New("catalog path escapes the destination root")

// RegionState is a snapshot of one region's batch counters.
type RegionState struct {
	Batch int
	Items int
}

type regionSlot struct {
	mu    sync.Mutex
	state RegionState
}

// Planner matches digests against a catalog and moves accepted files.
// It is safe for concurrent use; files for the same region are serialized.
type Planner struct {
	idx      *catalog.Index
	root     string
	twilight bool

	mu      sync.Mutex
	regions map[string]*regionSlot
}

// New returns a Planner placing files below root. With twilight set,
// region folders are split into Batch_n folders of BatchThreshold files.
func New(idx *catalog.Index, root string, twilight bool) *Planner {
	return &Planner{
		idx:      idx,
		root:     filepath.Clean(root),
		twilight: twilight,
		regions:  make(map[string]*regionSlot),
	}
}

// Place verifies the file at path against the catalog using res and, when
// it matches, moves it to its destination with move.
func (p *Planner) Place(path string, res digest.Result, move relocate.MoveFunc) Outcome {
	out := p.place(path, res, move)
	out.Size = res.Size
	return out
}

func (p *Planner) place(path string, res digest.Result, move relocate.MoveFunc) Outcome {
	entry, ok := p.idx.Find(res.MD5)
	if !ok {
		return Outcome{Kind: Unmatched, Path: path}
	}

	if size, ok := entry.Size.Get(); ok && size != strconv.FormatInt(res.Size, 10) {
		return Outcome{Kind: SizeMismatch, Path: path, Entry: &entry}
	}
	if crc, ok := entry.CRC.Get(); ok && crc != res.CRC32 {
		return Outcome{Kind: CRCMismatch, Path: path, Entry: &entry}
	}

	if !filepath.IsLocal(entry.Region) || !filepath.IsLocal(entry.Name) {
		return Outcome{
			Kind:  MoveFailed,
			Path:  path,
			Entry: &entry,
			Err:   fmt.Errorf("%w: region %q name %q", ErrUnsafePath, entry.Region, entry.Name),
		}
	}

	slot := p.slot(entry.Region)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if p.twilight && slot.state.Items >= BatchThreshold {
		slot.state.Batch++
		slot.state.Items = 0
	}

	dest := filepath.Join(p.destDir(entry.Region, slot.state.Batch), entry.Name)
	if dest == filepath.Clean(path) {
		return Outcome{Kind: InPlace, Path: path, Dest: dest, Entry: &entry}
	}

	if err := move(path, dest); err != nil {
		return Outcome{Kind: MoveFailed, Path: path, Dest: dest, Entry: &entry, Err: err}
	}
	slot.state.Items++
	return Outcome{Kind: Moved, Path: path, Dest: dest, Entry: &entry}
}

// Region returns the counters for region and whether it has been seen.
func (p *Planner) Region(region string) (RegionState, bool) {
	p.mu.Lock()
	slot, ok := p.regions[region]
	p.mu.Unlock()
	if !ok {
		return RegionState{}, false
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.state, true
}

// Regions returns a snapshot of every region seen so far.
func (p *Planner) Regions() map[string]RegionState {
	p.mu.Lock()
	slots := make(map[string]*regionSlot, len(p.regions))
	for name, slot := range p.regions {
		slots[name] = slot
	}
	p.mu.Unlock()

	out := make(map[string]RegionState, len(slots))
	for name, slot := range slots {
		slot.mu.Lock()
		out[name] = slot.state
		slot.mu.Unlock()
	}
	return out
}

// slot returns the region's slot, creating it at batch 1 on first sight.
func (p *Planner) slot(region string) *regionSlot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.regions[region]
	if !ok {
		s = &regionSlot{state: RegionState{Batch: 1}}
		p.regions[region] = s
	}
	return s
}

func (p *Planner) destDir(region string, batch int) string {
	dir := filepath.Join(p.root, region)
	if p.twilight {
		dir = filepath.Join(dir, BatchPrefix+strconv.Itoa(batch))
	}
	return dir
}
