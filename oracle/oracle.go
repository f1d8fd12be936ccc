/*
 * oracle.go, part of goNAMD.
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

//Package oracle defines the energy/force oracle goNAMD propagates trajectories on,
//and several implementations: model surfaces, wrappers for trained models, external programs and remote
//models served over gRPC.
package oracle

import (
	"context"
	"math"

	"github.com/rmera/namd"
	"github.com/rmera/namd/v3"
)

//Oracle gives the energies of all the electronic states of a structure, and the forces (negative gradients)
//on each atom for each state. Implementations must be deterministic for a given input,
//and safe for concurrent use if they are shared among trajectories.
type Oracle interface {
	Evaluate(ctx context.Context, s *Structure) (*Result, error)
}

//Func adapts a function to the Oracle interface.
type Func func(ctx context.Context, s *Structure) (*Result, error)

//Evaluate calls F.
func (F Func) Evaluate(ctx context.Context, s *Structure) (*Result, error) { return F(ctx, s) }

//Structure is what an Oracle gets. Coords are in Bohr, Masses in electron masses.
//OneHot can be nil, if the system was built without an atom type key.
type Structure struct {
	Coords  *v3.Matrix
	Symbols []string
	OneHot  [][]float64
	Masses  []float64
}

//NewStructure builds a Structure for sys at the coordinates coords. The slices are
//copies, but coords is not.
func NewStructure(sys *namd.System, coords *v3.Matrix) *Structure {
	return &Structure{Coords: coords, Symbols: sys.Symbols(), OneHot: sys.OneHot(), Masses: sys.Masses()}
}

//Len returns the number of atoms in the structure.
func (S *Structure) Len() int { return S.Coords.NVecs() }

//Result is what an Oracle returns: one energy (Hartree) per state and one
//Nx3 force matrix (Hartree/Bohr) per state, both in the oracle's own state order.
type Result struct {
	Energies []float64
	Forces   []*v3.Matrix
}

//NewResult returns a zero-valued Result for nstates states of a system of natoms atoms.
func NewResult(natoms, nstates int) *Result {
	R := &Result{Energies: make([]float64, nstates), Forces: make([]*v3.Matrix, nstates)}
	for i := range R.Forces {
		R.Forces[i] = v3.Zeros(natoms)
	}
	return R
}

//Check returns an error of kind ShapeMismatch if R doesn't have at least
//nstates energies, one force matrix per energy, each with natoms vectors, or if anything in it is not finite.
func (R *Result) Check(natoms, nstates int) error {
	if R == nil {
		return namd.NewError(namd.ErrShapeMismatch, "nil result", "Check")
	}
	if len(R.Energies) < nstates || len(R.Forces) != len(R.Energies) {
		return namd.Errorf(namd.ErrShapeMismatch, "Check", "%d energies and %d force sets for %d states", len(R.Energies), len(R.Forces), nstates)
	}
	for i, e := range R.Energies {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return namd.Errorf(namd.ErrShapeMismatch, "Check", "energy %d is %g", i, e)
		}
		f := R.Forces[i]
		if f == nil {
			return namd.Errorf(namd.ErrShapeMismatch, "Check", "forces for state %d missing", i)
		}
		if r, c := f.Dims(); r != natoms || c != 3 {
			return namd.Errorf(namd.ErrShapeMismatch, "Check", "forces for state %d are %dx%d, expected %dx3", i, r, c, natoms)
		}
		if !f.IsFinite() {
			return namd.Errorf(namd.ErrShapeMismatch, "Check", "forces for state %d are not finite", i)
		}
	}
	return nil
}

//Clone returns a deep copy of R.
func (R *Result) Clone() *Result {
	ret := &Result{Energies: append([]float64(nil), R.Energies...), Forces: make([]*v3.Matrix, len(R.Forces))}
	for i, f := range R.Forces {
		ret.Forces[i] = f.Clone()
	}
	return ret
}

//Evaluate calls o and checks its result against sys. Any failure, including a malformed result,
//is returned as an error of kind OracleFailure. The result is reordered so that its
//index i corresponds to namd.State(i).
func Evaluate(ctx context.Context, o Oracle, sys *namd.System, coords *v3.Matrix) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, namd.Decorate(err, namd.ErrOracleFailure, "Evaluate")
	}
	res, err := o.Evaluate(ctx, NewStructure(sys, coords))
	if err != nil {
		return nil, failure(err, "Evaluate")
	}
	states := sys.States()
	if err := res.Check(sys.Len(), states.OracleWidth()); err != nil {
		return nil, failure(err, "Evaluate")
	}
	ret := &Result{Energies: make([]float64, states.Len()), Forces: make([]*v3.Matrix, states.Len())}
	for i := range ret.Energies {
		o := states.OracleIndex(namd.State(i))
		ret.Energies[i] = res.Energies[o]
		ret.Forces[i] = res.Forces[o].Clone()
	}
	return ret, nil
}

//failure turns any error into one of kind OracleFailure, keeping
//the underlying kind reachable.
func failure(err error, caller string) error {
	if err == nil {
		return nil
	}
	return namd.Errorf(namd.ErrOracleFailure, caller, "%s", err).Wrap(err)
}
