// worker.go - worker helpers.
// Copyright (C) 2024  David Stainton.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package worker provides helpers for common goroutine patterns.
package worker

import "sync"

// Worker is a generic worker struct, designed to be embedded in other
// structs.  All of the goroutines started via Go() share a common halt
// channel.
type Worker struct {
	sync.WaitGroup

	initOnce sync.Once
	haltCh   chan interface{}
	haltOnce sync.Once
}

func (w *Worker) doInit() {
	w.haltCh = make(chan interface{})
}

// Go executes the function fn in a new goroutine, and adds it to the pool
// of goroutines to be stopped on Halt().
func (w *Worker) Go(fn func()) {
	w.initOnce.Do(w.doInit)
	w.Add(1)
	go func() {
		defer w.Done()
		fn()
	}()
}

// Halt signals all goroutines started via Go() to terminate, and waits
// until they have all returned.
func (w *Worker) Halt() {
	w.initOnce.Do(w.doInit)
	w.haltOnce.Do(func() {
		close(w.haltCh)
	})
	w.Wait()
}

// HaltCh returns the channel that is closed on Halt().  Each goroutine
// started via Go() must select on this channel in every blocking operation.
func (w *Worker) HaltCh() <-chan interface{} {
	w.initOnce.Do(w.doInit)
	return w.haltCh
}
