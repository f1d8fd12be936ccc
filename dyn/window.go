/*
 * window.go, part of goNAMD.
 *
 * Copyright 2024 Raul Mera <rmera{at}usach(dot)cl>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

//Package dyn propagates nonadiabatic trajectories: one Propagator owns one trajectory, with its
//3-point window of recent steps and its history.
package dyn

import (
	"github.com/rmera/namd"
	"github.com/rmera/namd/v3"
	"github.com/rmera/namd/zn"
)

//WindowSize is the number of time points kept in a Window.
const WindowSize = 3

//Snapshot is the state of the nuclei at one time point, with the energies
//and forces of all electronic states, indexed by namd.State.
type Snapshot struct {
	Coords   *v3.Matrix
	Velo     *v3.Matrix
	Energies []float64
	Forces   []*v3.Matrix
}

//NewSnapshot returns a zero-valued snapshot.
func NewSnapshot(natoms, nstates int) *Snapshot {
	S := &Snapshot{Coords: v3.Zeros(natoms), Velo: v3.Zeros(natoms), Energies: make([]float64, nstates), Forces: make([]*v3.Matrix, nstates)}
	for i := range S.Forces {
		S.Forces[i] = v3.Zeros(natoms)
	}
	return S
}

//Clone returns a deep copy of S.
func (S *Snapshot) Clone() *Snapshot {
	ret := &Snapshot{Coords: S.Coords.Clone(), Velo: S.Velo.Clone(), Energies: append([]float64(nil), S.Energies...), Forces: make([]*v3.Matrix, len(S.Forces))}
	for i, f := range S.Forces {
		ret.Forces[i] = f.Clone()
	}
	return ret
}

//Point returns the part of S the Zhu-Nakamura estimator needs. The data is not copied.
func (S *Snapshot) Point() zn.Point {
	return zn.Point{Coords: S.Coords, Energies: S.Energies, Forces: S.Forces}
}

//Window is a ring buffer with the last WindowSize snapshots of a trajectory, indexed
//by time offset (0 is the current step), plus the populated state and the current kinetic energy.
//A new Window holds zero-valued snapshots, which don't count as real history.
type Window struct {
	slots   [WindowSize]*Snapshot
	real    [WindowSize]bool
	head    int
	State   namd.State
	Kinetic float64
}

//NewWindow returns a Window of zero-valued snapshots.
func NewWindow(natoms, nstates int) *Window {
	W := new(Window)
	for i := range W.slots {
		W.slots[i] = NewSnapshot(natoms, nstates)
	}
	return W
}

func (W *Window) index(offset int) int {
	if offset < 0 || offset >= WindowSize {
		panic(v3.PanicMsg("goNAMD/dyn: window offset out of range"))
	}
	return (W.head - offset + WindowSize) % WindowSize
}

//At returns the snapshot offset steps in the past. It panics if offset is not in [0,WindowSize).
func (W *Window) At(offset int) *Snapshot { return W.slots[W.index(offset)] }

//Current returns the snapshot of the current step.
func (W *Window) Current() *Snapshot { return W.At(0) }

//Previous returns the snapshot of the previous step.
func (W *Window) Previous() *Snapshot { return W.At(1) }

//PreviousPrevious returns the snapshot from two steps ago.
func (W *Window) PreviousPrevious() *Snapshot { return W.At(2) }

//Record puts s in the current slot, and marks it as real history. s is not copied.
func (W *Window) Record(s *Snapshot) {
	W.slots[W.head] = s
	W.real[W.head] = true
}

//Shift drops the oldest snapshot and moves the others one step into the past. The new current
//slot starts as a deep copy of the previous current one, and is not real history until Record is called.
func (W *Window) Shift() {
	cur := W.slots[W.head]
	W.head = (W.head + 1) % WindowSize
	W.slots[W.head] = cur.Clone()
	W.real[W.head] = false
}

//Filled returns how many slots hold recorded snapshots.
func (W *Window) Filled() int {
	n := 0
	for _, r := range W.real {
		if r {
			n++
		}
	}
	return n
}

//Points returns the window in the form the Zhu-Nakamura estimator takes.
func (W *Window) Points() [WindowSize]zn.Point {
	var ret [WindowSize]zn.Point
	for i := range ret {
		ret[i] = W.At(i).Point()
	}
	return ret
}
