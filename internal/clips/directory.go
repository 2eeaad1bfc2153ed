// Package clips caches the clip list of each storage slot.
//
// Lists are replaced wholesale on every refresh. A refresh first asks for the
// clip count and skips the list fetch when the slot is empty. Lookups are
// linear scans; lists hold at most a few hundred entries.
package clips

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/text/cases"

	"deckhand/internal/deck"
	"deckhand/internal/hyperdeck"
)

// Fetcher performs one command round trip.
type Fetcher interface {
	Send(ctx context.Context, cmd hyperdeck.Command) (hyperdeck.Response, error)
}

// Choice is one entry of the clip picker exposed to control surfaces.
type Choice struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// ChangeFunc observes regenerated choice sets.
type ChangeFunc func(slotID int, choices []Choice)

type slotEntry struct {
	clips   []deck.Clip
	choices []Choice
}

// Directory is safe for concurrent use.
type Directory struct {
	mu       sync.RWMutex
	slots    map[int]*slotEntry
	pending  map[int]uint64
	version  uint64
	onChange ChangeFunc
}

// New returns an empty directory.
func New() *Directory {
	return &Directory{
		slots:   map[int]*slotEntry{},
		pending: map[int]uint64{},
	}
}

// OnChange registers fn to run after each successful refresh. fn runs without
// the directory lock held.
func (d *Directory) OnChange(fn ChangeFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

// Refresh reloads the clip list of slotID through f. When the device reports
// no clips the list is cleared without fetching it. A refresh that finishes
// after a newer refresh of the same slot started is dropped.
func (d *Directory) Refresh(ctx context.Context, slotID int, f Fetcher) (int, error) {
	gen := d.begin(slotID)

	resp, err := f.Send(ctx, hyperdeck.ClipsCount())
	if err != nil {
		return 0, fmt.Errorf("clips count: %w", err)
	}
	var list []deck.Clip
	if hyperdeck.DecodeClipsCount(resp) > 0 {
		resp, err = f.Send(ctx, hyperdeck.ClipsGet())
		if err != nil {
			return 0, fmt.Errorf("clips get: %w", err)
		}
		list = hyperdeck.DecodeClips(resp)
	}

	d.replace(slotID, gen, list)
	return len(list), nil
}

// Replace installs list for slotID as if a refresh had just completed.
func (d *Directory) Replace(slotID int, list []deck.Clip) {
	d.replace(slotID, d.begin(slotID), list)
}

func (d *Directory) begin(slotID int) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[slotID]++
	return d.pending[slotID]
}

func (d *Directory) replace(slotID int, gen uint64, list []deck.Clip) bool {
	d.mu.Lock()
	if gen != d.pending[slotID] {
		d.mu.Unlock()
		return false
	}
	clipsCopy := append([]deck.Clip(nil), list...)
	choices := make([]Choice, 0, len(clipsCopy))
	for _, clip := range clipsCopy {
		choices = append(choices, Choice{ID: clip.ID, Label: clip.Name})
	}
	d.slots[slotID] = &slotEntry{clips: clipsCopy, choices: choices}
	d.version++
	hook := d.onChange
	d.mu.Unlock()

	if hook != nil {
		hook(slotID, append([]Choice(nil), choices...))
	}
	return true
}

// FindByID returns the clip with ordinal id in slotID.
func (d *Directory) FindByID(slotID, id int) (deck.Clip, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.slots[slotID]
	if !ok {
		return deck.Clip{}, false
	}
	for _, clip := range entry.clips {
		if clip.ID == id {
			return clip, true
		}
	}
	return deck.Clip{}, false
}

// FindByName returns the clip named name in slotID. An exact match wins over
// a case-insensitive one.
func (d *Directory) FindByName(slotID int, name string) (deck.Clip, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.slots[slotID]
	if !ok {
		return deck.Clip{}, false
	}
	for _, clip := range entry.clips {
		if clip.Name == name {
			return clip, true
		}
	}
	fold := cases.Fold()
	folded := fold.String(name)
	for _, clip := range entry.clips {
		if fold.String(clip.Name) == folded {
			return clip, true
		}
	}
	return deck.Clip{}, false
}

// Clips returns a copy of the clip list of slotID.
func (d *Directory) Clips(slotID int) []deck.Clip {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.slots[slotID]
	if !ok {
		return nil
	}
	return append([]deck.Clip(nil), entry.clips...)
}

// Count returns the cached clip count of slotID.
func (d *Directory) Count(slotID int) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if entry, ok := d.slots[slotID]; ok {
		return len(entry.clips)
	}
	return 0
}

// Choices returns the picker entries of slotID.
func (d *Directory) Choices(slotID int) []Choice {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if entry, ok := d.slots[slotID]; ok {
		return append([]Choice(nil), entry.choices...)
	}
	return nil
}

// Slots returns the slot ids that have been refreshed at least once.
func (d *Directory) Slots() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]int, 0, len(d.slots))
	for id := range d.slots {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Version increases with every successful refresh.
func (d *Directory) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}
