package sidebar

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Format is the wrapper a sidebar table is published in.
type Format int

const (
	// FormatInit is `initSidebarItems({...});`, written by older rustdoc.
	FormatInit Format = iota
	// FormatWindow is `window.SIDEBAR_ITEMS = {...};`, written by newer
	// rustdoc. Entries may be bare names.
	FormatWindow
	// FormatJSON is the bare object.
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatInit:
		return "init"
	case FormatWindow:
		return "window"
	case FormatJSON:
		return "json"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

const (
	initPrefix   = "initSidebarItems("
	windowPrefix = "window.SIDEBAR_ITEMS"
)

// Parse loads a sidebar table from a sidebar-items.js script or bare JSON.
func Parse(src []byte) (*Items, error) {
	items, _, err := ParseFormat(src)
	return items, err
}

// ParseFormat is Parse that also reports which wrapper the source used.
func ParseFormat(src []byte) (*Items, Format, error) {
	body, format, err := unwrap(src)
	if err != nil {
		return nil, format, err
	}
	// The object must be the whole payload: nothing may trail it.
	if !json.Valid(body) {
		return nil, format, fmt.Errorf("%w: body is not a single JSON object", ErrNotSidebarScript)
	}
	items, err := decodeObject(body, format == FormatWindow)
	return items, format, err
}

func unwrap(src []byte) ([]byte, Format, error) {
	s := bytes.TrimSpace(src)
	switch {
	case bytes.HasPrefix(s, []byte(initPrefix)):
		s = bytes.TrimSuffix(s, []byte(";"))
		s = bytes.TrimSpace(s)
		if !bytes.HasSuffix(s, []byte(")")) {
			return nil, FormatInit, fmt.Errorf("%w: unterminated %s call", ErrNotSidebarScript, initPrefix)
		}
		return s[len(initPrefix) : len(s)-1], FormatInit, nil
	case bytes.HasPrefix(s, []byte(windowPrefix)):
		rest := bytes.TrimSpace(s[len(windowPrefix):])
		if !bytes.HasPrefix(rest, []byte("=")) {
			return nil, FormatWindow, fmt.Errorf("%w: missing assignment", ErrNotSidebarScript)
		}
		rest = bytes.TrimSpace(bytes.TrimSuffix(rest[1:], []byte(";")))
		return rest, FormatWindow, nil
	case bytes.HasPrefix(s, []byte("{")):
		return s, FormatJSON, nil
	default:
		return nil, FormatJSON, ErrNotSidebarScript
	}
}

// decodeObject decodes the kind -> entries object. A repeated kind key
// follows JSON semantics: the last occurrence wins.
func decodeObject(data []byte, allowBareNames bool) (*Items, error) {
	raw := orderedmap.New[string, []json.RawMessage]()
	if err := raw.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("decoding sidebar object: %w", err)
	}

	b := NewBuilder()
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		kind := Kind(pair.Key)
		b.Kind(kind)
		for i, rawEntry := range pair.Value {
			if allowBareNames && len(rawEntry) > 0 && rawEntry[0] == '"' {
				var name string
				if err := json.Unmarshal(rawEntry, &name); err != nil {
					b.fail(&EntryError{Kind: kind, Index: i, Err: fmt.Errorf("%w: %v", ErrMalformedEntry, err)})
					continue
				}
				b.Add(kind, name, "")
				continue
			}
			var e Entry
			if err := e.UnmarshalJSON(rawEntry); err != nil {
				b.fail(&EntryError{Kind: kind, Index: i, Err: err})
				continue
			}
			b.Add(kind, e.Name, e.Description)
		}
	}
	return b.Build()
}

// Render writes items in the given wrapper. FormatInit reproduces the file
// rustdoc generates byte for byte.
func Render(items *Items, format Format) []byte {
	body, _ := items.MarshalJSON()
	switch format {
	case FormatInit:
		out := make([]byte, 0, len(body)+len(initPrefix)+2)
		out = append(out, initPrefix...)
		out = append(out, body...)
		return append(out, ");"...)
	case FormatWindow:
		out := make([]byte, 0, len(body)+len(windowPrefix)+4)
		out = append(out, windowPrefix+" = "...)
		out = append(out, body...)
		return append(out, ';')
	default:
		return body
	}
}

// jsonBuffer writes compact JSON without HTML escaping, matching rustdoc's
// serializer.
type jsonBuffer struct {
	bytes.Buffer
}

func (b *jsonBuffer) writeString(s string) {
	enc := json.NewEncoder(&b.Buffer)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encode terminates with a newline.
	b.Truncate(b.Len() - 1)
}
