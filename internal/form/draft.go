// internal/form/draft.go
//
// Draft is the in-memory state of one form being filled in: text values,
// newly selected files, existing attachments (update flow), attachments the
// user removed, and the set of touched fields.  It is not safe for concurrent
// use; Controller serialises access.

package form

// Draft holds one record’s unsaved input.
type Draft struct {
	values   map[string]string
	files    map[string][]File
	existing map[string][]string
	removed  map[string][]string
	touched  map[string]bool
}

// NewDraft returns an empty draft.
func NewDraft() *Draft {
	return &Draft{
		values:   make(map[string]string),
		files:    make(map[string][]File),
		existing: make(map[string][]string),
		removed:  make(map[string][]string),
		touched:  make(map[string]bool),
	}
}

func (d *Draft) Value(name string) string { return d.values[name] }
func (d *Draft) Set(name, value string) { d.values[name] = value }
func (d *Draft) Files(name string) []File { return d.files[name] }
func (d *Draft) Touched(name string) bool { return d.touched[name] }
func (d *Draft) Touch(name string) { d.touched[name] = true }
func (d *Draft) Removed(name string) []string { return d.removed[name] }
func (d *Draft) SetFiles(name string, f []File) { d.files[name] = append([]File(nil), f...) }

// Existing returns the attachments still kept on the record.
func (d *Draft) Existing(name string) []string { return d.existing[name] }

// SetExisting seeds attachments fetched with the record.
func (d *Draft) SetExisting(name string, refs []string) {
	d.existing[name] = append([]string(nil), refs...)
	delete(d.removed, name)
}

// RemoveExisting moves ref from the kept set to the removed set.  It reports
// false when ref is not a kept attachment.
func (d *Draft) RemoveExisting(name, ref string) bool {
	kept := d.existing[name]
	for i, r := range kept {
		if r == ref {
			d.existing[name] = append(kept[:i:i], kept[i+1:]...)
			d.removed[name] = append(d.removed[name], ref)
			return true
		}
	}
	return false
}

// Values returns a copy of the text values.
func (d *Draft) Values() map[string]string {
	out := make(map[string]string, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy so an in-flight submission is isolated from edits.
func (d *Draft) Clone() *Draft {
	c := NewDraft()
	for k, v := range d.values {
		c.values[k] = v
	}
	for k, v := range d.files {
		c.files[k] = append([]File(nil), v...)
	}
	for k, v := range d.existing {
		c.existing[k] = append([]string(nil), v...)
	}
	for k, v := range d.removed {
		c.removed[k] = append([]string(nil), v...)
	}
	for k, v := range d.touched {
		c.touched[k] = v
	}
	return c
}

// fileChange summarises one upload field for the submission payload.
func (d *Draft) fileChange(name string) FileChange {
	fc := FileChange{
		New:     append([]File(nil), d.files[name]...),
		Kept:    append([]string(nil), d.existing[name]...),
		Removed: append([]string(nil), d.removed[name]...),
	}
	switch {
	case len(fc.New) > 0:
		fc.State = FileReplaced
	case len(fc.Removed) > 0 && len(fc.Kept) == 0:
		fc.State = FileDeleted
	case len(fc.Removed) > 0:
		fc.State = FileReplaced
	default:
		fc.State = FileUnchanged
	}
	return fc
}
