package common

import "errors"

// ErrModulePaused rejects every mutating operation of a paused module.
var ErrModulePaused = errors.New("module paused")

// PauseView reports per-module pause switches. Operators flip these through
// node configuration; engines consult them on every operation entry.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the named module is paused. A nil view
// or empty module name never blocks.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
