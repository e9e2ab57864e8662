package cell

import (
	"fmt"
	"sync"
)

// ColorKind tags a Color as the default terminal color, an 8-bit palette
// index, or a 24-bit RGB triple.
type ColorKind uint8

const (
	ColorDefault ColorKind = iota
	ColorIndexed
	ColorRGB
)

// Color is a tagged union over the three color representations the spec
// requires cells to carry.
type Color struct {
	Kind  ColorKind
	Index uint8 // valid when Kind == ColorIndexed
	R, G, B uint8 // valid when Kind == ColorRGB
}

// Attrs is a bitset of SGR text attributes.
type Attrs uint16

const (
	AttrBold Attrs = 1 << iota
	AttrDim
	AttrItalic
	AttrUnderline
	AttrReverse
	AttrBlink
	AttrStrikethrough
	AttrHidden
)

// Style is the content-addressed definition interned into a StyleTable.
type Style struct {
	Fg, Bg Color
	Attrs  Attrs
}

// key renders the style into a comparable value usable as a map key,
// since Style itself is already comparable (all fields are scalar), but
// the named function keeps intern() readable and gives us a single place
// to change the representation if Style grows a non-comparable field.
func (s Style) key() Style { return s }

// UnknownStyle is returned by ByID when a style identifier was never
// interned on this side of the synchronization link.
type UnknownStyle struct{ ID uint32 }

func (e UnknownStyle) Error() string {
	return fmt.Sprintf("cell: unknown style id %d", e.ID)
}

// StyleTable interns Style definitions into small unsigned identifiers
// and provides the reverse lookup, per spec §4.A. Identifier 0 is
// pre-seeded for the default style. StyleTable is safe for concurrent
// use: the emulator (writer) interns while synchronizers (readers) look
// styles up to build Style update frames.
type StyleTable struct {
	mu      sync.RWMutex
	byValue map[Style]uint32
	byID    []Style
}

// NewStyleTable returns a StyleTable with identifier 0 pre-seeded as the
// default (zero-value) style.
func NewStyleTable() *StyleTable {
	t := &StyleTable{
		byValue: make(map[Style]uint32),
		byID:    make([]Style, 0, 64),
	}
	t.byID = append(t.byID, Style{})
	t.byValue[Style{}] = DefaultStyleID
	return t
}

// Intern returns the identifier for def, interning it if this is the
// first time def has been seen. isNew is true exactly when a fresh
// identifier was minted, which the caller (the emulator adapter) uses to
// decide whether a Style update must be emitted before the next
// reference to the identifier.
func (t *StyleTable) Intern(def Style) (id uint32, isNew bool) {
	key := def.key()

	t.mu.RLock()
	if id, ok := t.byValue[key]; ok {
		t.mu.RUnlock()
		return id, false
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Re-check under the write lock in case another writer raced us.
	if id, ok := t.byValue[key]; ok {
		return id, false
	}

	id = uint32(len(t.byID))
	t.byID = append(t.byID, def)
	t.byValue[key] = id
	return id, true
}

// ByID performs the reverse lookup. It fails with UnknownStyle if id was
// never interned on this table.
func (t *StyleTable) ByID(id uint32) (Style, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(id) >= len(t.byID) {
		return Style{}, UnknownStyle{ID: id}
	}
	return t.byID[id], nil
}

// Define forces a style definition onto a specific identifier, used by
// the client side of the link when applying a Style update frame sent by
// the host: the host has already minted the identifier, so the client
// must record the same mapping rather than re-interning and possibly
// landing on a different id.
func (t *StyleTable) Define(id uint32, def Style) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for uint32(len(t.byID)) <= id {
		t.byID = append(t.byID, Style{})
	}
	t.byID[id] = def
	t.byValue[def.key()] = id
}
