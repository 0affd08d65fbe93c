package sidebar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Entry is one sidebar row: an item name and its one-line summary.
// It is encoded as a two-element JSON array.
type Entry struct {
	Name        string
	Description string
}

func (e Entry) MarshalJSON() ([]byte, error) {
	var buf jsonBuffer
	buf.WriteByte('[')
	buf.writeString(e.Name)
	buf.WriteByte(',')
	buf.writeString(e.Description)
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("%w: got %d elements", ErrMalformedEntry, len(pair))
	}
	// json.Unmarshal leaves a string untouched for null, so require literals.
	for i, part := range pair {
		if p := bytes.TrimSpace(part); len(p) == 0 || p[0] != '"' {
			return fmt.Errorf("%w: element %d is not a string", ErrMalformedEntry, i)
		}
	}
	var name, desc string
	if err := json.Unmarshal(pair[0], &name); err != nil {
		return fmt.Errorf("%w: name: %v", ErrMalformedEntry, err)
	}
	if err := json.Unmarshal(pair[1], &desc); err != nil {
		return fmt.Errorf("%w: description: %v", ErrMalformedEntry, err)
	}
	e.Name, e.Description = name, desc
	return nil
}

// Items is the sidebar table of one documentation page: kinds in declaration
// order, each holding its entries in declaration order. An Items value is
// never modified after it is built, so it can be shared freely between
// goroutines.
type Items struct {
	kinds *orderedmap.OrderedMap[Kind, []Entry]
}

// Kinds returns the kinds present, in order.
func (it *Items) Kinds() []Kind {
	if it == nil || it.kinds == nil {
		return nil
	}
	out := make([]Kind, 0, it.kinds.Len())
	for pair := it.kinds.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Entries returns a copy of the entries listed under kind.
func (it *Items) Entries(kind Kind) []Entry {
	if it == nil || it.kinds == nil {
		return nil
	}
	entries, _ := it.kinds.Get(kind)
	return slices.Clone(entries)
}

// Lookup finds an entry by kind and name.
func (it *Items) Lookup(kind Kind, name string) (Entry, bool) {
	if it == nil || it.kinds == nil {
		return Entry{}, false
	}
	entries, _ := it.kinds.Get(kind)
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Len returns the total number of entries across all kinds.
func (it *Items) Len() int {
	n := 0
	for _, entries := range it.All() {
		n += len(entries)
	}
	return n
}

// All iterates kinds and their entries in order. The slices yielded are
// copies.
func (it *Items) All() iter.Seq2[Kind, []Entry] {
	return func(yield func(Kind, []Entry) bool) {
		if it == nil || it.kinds == nil {
			return
		}
		for pair := it.kinds.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, slices.Clone(pair.Value)) {
				return
			}
		}
	}
}

// Equal reports whether both tables hold the same kinds and entries in the
// same order.
func (it *Items) Equal(other *Items) bool {
	a, b := it.Kinds(), other.Kinds()
	if !slices.Equal(a, b) {
		return false
	}
	for _, k := range a {
		if !slices.Equal(it.Entries(k), other.Entries(k)) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the table as the object rustdoc passes to
// initSidebarItems, preserving order.
func (it *Items) MarshalJSON() ([]byte, error) {
	var buf jsonBuffer
	buf.WriteByte('{')
	first := true
	for kind, entries := range it.All() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.writeString(string(kind))
		buf.WriteString(":[")
		for i, e := range entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, _ := e.MarshalJSON()
			buf.Write(b)
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (it *Items) UnmarshalJSON(data []byte) error {
	parsed, err := decodeObject(data, false)
	if err != nil {
		return err
	}
	*it = *parsed
	return nil
}

// Builder assembles an Items table, enforcing that names are non-empty and
// unique within a kind.
type Builder struct {
	items *Items
	seen  map[Kind]map[string]struct{}
	errs  []error
}

func NewBuilder() *Builder {
	return &Builder{
		items: &Items{kinds: orderedmap.New[Kind, []Entry]()},
		seen:  make(map[Kind]map[string]struct{}),
	}
}

// Kind registers kind without entries so that empty sections keep their
// position.
func (b *Builder) Kind(kind Kind) *Builder {
	if _, ok := b.items.kinds.Get(kind); !ok {
		b.items.kinds.Set(kind, nil)
		b.seen[kind] = make(map[string]struct{})
	}
	return b
}

// Add appends an entry under kind. Problems are collected and reported by
// Build.
func (b *Builder) Add(kind Kind, name, description string) *Builder {
	b.Kind(kind)
	entries, _ := b.items.kinds.Get(kind)
	if name == "" {
		b.errs = append(b.errs, &EntryError{Kind: kind, Index: len(entries), Err: ErrEmptyName})
		return b
	}
	if _, dup := b.seen[kind][name]; dup {
		b.errs = append(b.errs, &EntryError{Kind: kind, Name: name, Index: -1, Err: ErrDuplicateName})
		return b
	}
	b.seen[kind][name] = struct{}{}
	b.items.kinds.Set(kind, append(entries, Entry{Name: name, Description: description}))
	return b
}

func (b *Builder) fail(err error) {
	b.errs = append(b.errs, err)
}

// Build returns the finished table. The builder must not be used afterwards.
func (b *Builder) Build() (*Items, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	items := b.items
	b.items = nil
	return items, nil
}
