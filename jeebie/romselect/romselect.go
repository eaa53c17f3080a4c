// Package romselect implements the paged ROM-picker menu that sits in front
// of the emulator on bare-metal platforms: a cursor over a filesystem-backed
// list of RomEntry, navigated with the same small discrete event enum the
// rest of the input stack uses (see jeebie/input/action).
package romselect

import (
	"strings"

	"github.com/baremetal-gb/gbcore/jeebie/platform"
)

// PageSize is the number of entries shown per page. Left/Right move the
// cursor a full page at a time.
const PageSize = 16

// NameLength is the maximum ROM display name length, matching the 8.3-style
// short names a FAT filesystem contract hands back (spec.md §6).
const NameLength = 128

// RomEntry describes one ROM found on the storage medium. Cluster/Size are
// opaque to the menu: they are handed back verbatim in a Selection so the
// platform's filesystem contract can stream the ROM bytes.
type RomEntry struct {
	Name    string
	Cluster uint32
	Size    uint32
	IsGBC   bool
}

// Selection is returned by Menu.Handle when the user confirms a choice.
type Selection struct {
	Cluster uint32
	Size    uint32
}

// NavEvent is one of the six input events the menu understands.
type NavEvent int

const (
	Up NavEvent = iota
	Down
	Left
	Right
	Select
	Back
)

// Menu is a paged cursor over a fixed list of ROMs. It holds no platform
// dependency: the caller polls its input device into NavEvents and streams
// ROM bytes itself via the Selection the menu returns.
type Menu struct {
	entries []RomEntry
	cursor  int
}

// New creates a menu over entries, with the cursor on the first entry.
// entries may be empty; navigation and Select are then no-ops.
func New(entries []RomEntry) *Menu {
	return &Menu{entries: entries}
}

// EntriesFromFilesystem lists every ROM a mounted platform.Filesystem knows
// about as RomEntry values, ready to pass to New.
func EntriesFromFilesystem(fs platform.Filesystem) ([]RomEntry, error) {
	n := fs.CountRoms()
	entries := make([]RomEntry, 0, n)

	for i := 0; i < n; i++ {
		name, err := fs.RomName(i)
		if err != nil {
			return nil, err
		}
		cluster, size, ok := fs.FindRom(i)
		if !ok {
			continue
		}
		entries = append(entries, RomEntry{
			Name:    name,
			Cluster: cluster,
			Size:    size,
			IsGBC:   strings.HasSuffix(strings.ToLower(name), ".gbc"),
		})
	}

	return entries, nil
}

// Entries returns the full, unpaged ROM list.
func (m *Menu) Entries() []RomEntry {
	return m.entries
}

// Cursor returns the absolute index of the currently highlighted entry.
func (m *Menu) Cursor() int {
	return m.cursor
}

// Page returns the zero-based index of the page the cursor is currently on.
func (m *Menu) Page() int {
	return m.cursor / PageSize
}

// PageEntries returns the slice of entries on the cursor's current page.
func (m *Menu) PageEntries() []RomEntry {
	start, end := m.pageBounds()
	return m.entries[start : end+1]
}

// Selected returns the entry currently under the cursor and whether one
// exists (false when the list is empty).
func (m *Menu) Selected() (RomEntry, bool) {
	if len(m.entries) == 0 {
		return RomEntry{}, false
	}
	return m.entries[m.cursor], true
}

// pageBounds returns the first and last absolute indices of the cursor's
// current page, inclusive. The last page may be short.
func (m *Menu) pageBounds() (start, end int) {
	start = (m.cursor / PageSize) * PageSize
	end = start + PageSize - 1
	if end > len(m.entries)-1 {
		end = len(m.entries) - 1
	}
	return start, end
}

// Handle processes one navigation event. It returns a Selection and true
// only in response to Select with a non-empty list; every other event
// (including Back) returns ok=false after updating the cursor, leaving the
// caller to decide what Back means (typically: leave the menu).
func (m *Menu) Handle(ev NavEvent) (Selection, bool) {
	if len(m.entries) == 0 {
		return Selection{}, false
	}

	switch ev {
	case Up:
		start, end := m.pageBounds()
		m.cursor--
		if m.cursor < start {
			m.cursor = end
		}
	case Down:
		start, end := m.pageBounds()
		m.cursor++
		if m.cursor > end {
			m.cursor = start
		}
	case Left:
		m.pageBy(-1)
	case Right:
		m.pageBy(1)
	case Select:
		entry := m.entries[m.cursor]
		return Selection{Cluster: entry.Cluster, Size: entry.Size}, true
	case Back:
		// Navigation-only; the frame loop decides what leaving the menu means.
	}

	return Selection{}, false
}

// pageBy moves the cursor a whole page forward or backward (dir = ±1),
// wrapping around the first/last page, and keeps the cursor's offset within
// the page (clamped on short pages).
func (m *Menu) pageBy(dir int) {
	numPages := (len(m.entries) + PageSize - 1) / PageSize
	offset := m.cursor % PageSize

	page := m.cursor/PageSize + dir
	if page < 0 {
		page = numPages - 1
	} else if page >= numPages {
		page = 0
	}

	target := page*PageSize + offset
	lastInPage := page*PageSize + PageSize - 1
	if lastInPage > len(m.entries)-1 {
		lastInPage = len(m.entries) - 1
	}
	if target > lastInPage {
		target = lastInPage
	}

	m.cursor = target
}
