package session

import (
	"sync"

	"github.com/spatialplot/globeviz/internal/model"
)

// Context holds the shared view state: the active selection and the
// reference globe the projector places markers on. A nil sphere ref means
// no globe is loaded and passes place nothing.
type Context struct {
	mu  sync.RWMutex
	sel model.Selection
	ref *model.SphereRef
}

// NewContext creates a Context starting at the given selection.
func NewContext(sel model.Selection) *Context {
	return &Context{sel: sel}
}

// Selection returns the current selection.
func (c *Context) Selection() model.Selection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sel
}

// SetSelection replaces the current selection.
func (c *Context) SetSelection(sel model.Selection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sel = sel
}

// SphereRef returns the loaded reference globe, or nil.
func (c *Context) SphereRef() *model.SphereRef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ref
}

// SetSphereRef installs or clears the reference globe.
func (c *Context) SetSphereRef(ref *model.SphereRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ref = ref
}
