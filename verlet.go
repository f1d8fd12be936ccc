/*
 * verlet.go, part of goNAMD.
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

package namd

import (
	"github.com/rmera/namd/v3"
	"gonum.org/v1/gonum/floats"
)

//The velocity-Verlet integrator. Forces are negative gradients of the populated state's energy,
//so both updates accelerate along the force.

//AdvancePosition returns the coordinates after a time step dt,
//x' = x + v dt + ½ F/m dt². force is the force on the populated state only.
func AdvancePosition(coords, velo, force *v3.Matrix, mass []float64, dt float64) (*v3.Matrix, error) {
	if err := verletShapes(mass, coords, velo, force); err != nil {
		return nil, Decorate(err, ErrShapeMismatch, "AdvancePosition")
	}
	next := v3.Zeros(len(mass))
	dt2 := 0.5 * dt * dt
	for i, m := range mass {
		row := next.RawRowView(i)
		copy(row, coords.RawRowView(i))
		floats.AddScaled(row, dt, velo.RawRowView(i))
		floats.AddScaled(row, dt2/m, force.RawRowView(i))
	}
	return next, nil
}

//AdvanceVelocity returns the velocities after a time step dt,
//v' = v + ½ (F+Fprev)/m dt, where F is the force at the new positions
//and Fprev the one used in the position update.
func AdvanceVelocity(velo, force, forcePrev *v3.Matrix, mass []float64, dt float64) (*v3.Matrix, error) {
	if err := verletShapes(mass, velo, force, forcePrev); err != nil {
		return nil, Decorate(err, ErrShapeMismatch, "AdvanceVelocity")
	}
	next := v3.Zeros(len(mass))
	for i, m := range mass {
		row := next.RawRowView(i)
		copy(row, velo.RawRowView(i))
		f := 0.5 * dt / m
		floats.AddScaled(row, f, force.RawRowView(i))
		floats.AddScaled(row, f, forcePrev.RawRowView(i))
	}
	return next, nil
}

func verletShapes(mass []float64, mats ...*v3.Matrix) error {
	if len(mass) == 0 {
		return NewError(ErrShapeMismatch, "no atoms", "verletShapes")
	}
	for i, m := range mats {
		if m == nil {
			return Errorf(ErrShapeMismatch, "verletShapes", "matrix %d is nil", i)
		}
		if r, c := m.Dims(); r != len(mass) || c != 3 {
			return Errorf(ErrShapeMismatch, "verletShapes", "matrix %d is %dx%d, expected %dx3", i, r, c, len(mass))
		}
	}
	return nil
}
