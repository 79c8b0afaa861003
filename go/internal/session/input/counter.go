// Package input turns raw device input into session actions: the button press
// counter, the confirmation window and the gesture relay.
package input

import "sync/atomic"

// PressSource reports a monotonically increasing press count.
type PressSource interface {
	Presses() uint64
}

// Counter is a PressSource fed by the button driver.
type Counter struct {
	presses atomic.Uint64
}

// Press records one button press and returns the new count.
func (c *Counter) Press() uint64 {
	return c.presses.Add(1)
}

func (c *Counter) Presses() uint64 {
	return c.presses.Load()
}
