/*
 * history.go, part of goNAMD.
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

package dyn

import (
	"github.com/rmera/namd"
	"github.com/rmera/namd/hop"
	"github.com/rmera/namd/v3"
)

//Frame is the record of one time point of a trajectory. Energy and Forces belong
//to the populated State. Energies has the energies of all states.
type Frame struct {
	Iteration int
	State     namd.State
	Coords    *v3.Matrix
	Velo      *v3.Matrix
	Energy    float64
	Forces    *v3.Matrix
	Energies  []float64
	Kinetic   float64
	Hop       hop.Kind //what happened at the end of this step
}

//Total returns the total energy of the frame.
func (F Frame) Total() float64 { return F.Energy + F.Kinetic }

func (F Frame) clone() Frame {
	F.Coords = F.Coords.Clone()
	if F.Velo != nil {
		F.Velo = F.Velo.Clone()
	}
	if F.Forces != nil {
		F.Forces = F.Forces.Clone()
	}
	F.Energies = append([]float64(nil), F.Energies...)
	return F
}

//Event is a hop, or a frustrated hop, during a trajectory.
type Event struct {
	Iteration   int
	Kind        hop.Kind
	From, To    namd.State
	Probability float64
}

//History is the append-only record of a trajectory.
type History struct {
	frames []Frame
}

//NewHistory returns an empty history with room for n frames.
func NewHistory(n int) *History {
	if n < 0 {
		n = 0
	}
	return &History{frames: make([]Frame, 0, n)}
}

//Add appends a deep copy of f.
func (H *History) Add(f Frame) {
	H.frames = append(H.frames, f.clone())
}

//Len returns the number of frames.
func (H *History) Len() int { return len(H.frames) }

//Frame returns the ith frame. The matrices in it must not be modified.
func (H *History) Frame(i int) Frame { return H.frames[i] }

//Last returns the last frame and true, or false if the history is empty.
func (H *History) Last() (Frame, bool) {
	if len(H.frames) == 0 {
		return Frame{}, false
	}
	return H.frames[len(H.frames)-1], true
}

//Frames returns a copy of the slice of frames. The matrices in them must not be modified.
func (H *History) Frames() []Frame {
	return append([]Frame(nil), H.frames...)
}

//States returns the populated state at each frame.
func (H *History) States() []namd.State {
	ret := make([]namd.State, len(H.frames))
	for i, f := range H.frames {
		ret[i] = f.State
	}
	return ret
}
