// Package selection tracks what the user is currently working on: the
// active sample, stage, method and the well-typed field the picker fills.
package selection

import (
	"sync"

	"github.com/lh-manager/workbench/core/labware"
)

// NoMethod is the method index when no method is selected.
const NoMethod = -1

// Snapshot is a point-in-time view of a Context.
type Snapshot struct {
	SampleID    string
	Stage       labware.StageName
	MethodIndex int
	WellField   string
}

// HasMethod reports whether a method is selected.
func (s Snapshot) HasMethod() bool {
	return s.Stage != "" && s.MethodIndex >= 0
}

// Context is the active selection. It is passed explicitly to the
// components that read or move it and is safe for concurrent use.
type Context struct {
	mu  sync.RWMutex
	cur Snapshot
}

func New() *Context {
	return &Context{cur: Snapshot{MethodIndex: NoMethod}}
}

func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// SelectSample makes id the active sample and clears the method selection.
func (c *Context) SelectSample(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur.SampleID != id {
		c.cur = Snapshot{SampleID: id, MethodIndex: NoMethod}
	}
}

// SelectMethod makes the method at index of stage active.
func (c *Context) SelectMethod(stage labware.StageName, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cur.Stage = stage
	c.cur.MethodIndex = index
}

// SelectWellField records the well-typed field awaiting a pick.
func (c *Context) SelectWellField(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur.WellField = field
}

func (c *Context) ClearMethod() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cur.MethodIndex = NoMethod
	c.cur.WellField = ""
}

func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = Snapshot{MethodIndex: NoMethod}
}
