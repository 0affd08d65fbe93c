package sidebar

import "errors"

// Options tightens Validate beyond the structural rules Parse already
// enforces.
type Options struct {
	// Strict rejects kinds rustdoc does not emit.
	Strict bool
	// RequireDescriptions rejects entries with an empty summary. Rustdoc
	// leaves undocumented modules blank, so this is off by default.
	RequireDescriptions bool
}

// Validate checks items against opts and returns every problem found, joined.
func Validate(items *Items, opts Options) error {
	var errs []error
	for kind, entries := range items.All() {
		if opts.Strict && !kind.Known() {
			errs = append(errs, &EntryError{Kind: kind, Index: -1, Err: ErrUnknownKind})
		}
		if !opts.RequireDescriptions {
			continue
		}
		for _, e := range entries {
			if e.Description == "" {
				errs = append(errs, &EntryError{Kind: kind, Name: e.Name, Index: -1, Err: ErrEmptyDescription})
			}
		}
	}
	return errors.Join(errs...)
}
