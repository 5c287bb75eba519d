package snapshot

import "sync"

// Directives carries single-use restore intents from a restore to the save it
// triggers, keyed by media id.
//
//   - Suppressed: skip the next pre-save archive (the restore already wrote
//     the content being replaced).
//   - ForceSnapshot: skip the duplicate check on the next post-save archive
//     (the restored file is meant to become the newest entry even though an
//     identical entry exists).
//
// Each flag is observed by exactly one Consume call. Coordinator.Restore
// clears whatever the triggered save did not consume.
type Directives struct {
	suppressed sync.Map // map[int]struct{}
	force      sync.Map // map[int]struct{}
}

// NewDirectives creates an empty registry.
func NewDirectives() *Directives {
	return &Directives{}
}

// Suppress sets the Suppressed flag for id.
func (d *Directives) Suppress(id int) {
	d.suppressed.Store(id, struct{}{})
}

// ForceSnapshot sets the ForceSnapshot flag for id.
func (d *Directives) ForceSnapshot(id int) {
	d.force.Store(id, struct{}{})
}

// ConsumeSuppressed reports and clears the Suppressed flag for id.
func (d *Directives) ConsumeSuppressed(id int) bool {
	_, ok := d.suppressed.LoadAndDelete(id)
	return ok
}

// ConsumeForceSnapshot reports and clears the ForceSnapshot flag for id.
func (d *Directives) ConsumeForceSnapshot(id int) bool {
	_, ok := d.force.LoadAndDelete(id)
	return ok
}

// Clear drops both flags for id and reports whether any was still set.
func (d *Directives) Clear(id int) bool {
	_, s := d.suppressed.LoadAndDelete(id)
	_, f := d.force.LoadAndDelete(id)
	return s || f
}
