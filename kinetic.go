/*
 * kinetic.go, part of goNAMD.
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
	"math"

	"github.com/rmera/namd/v3"
	"gonum.org/v1/gonum/floats"
)

//KineticEnergy returns the kinetic energy of atoms with masses mass
//and velocities velo, Σ ½ m_i |v_i|².
func KineticEnergy(mass []float64, velo *v3.Matrix) (float64, error) {
	if velo == nil || len(mass) != velo.NVecs() {
		return 0, kinShapeError("KineticEnergy", mass, velo)
	}
	var ke float64
	for i, m := range mass {
		v := velo.RawRowView(i)
		ke += 0.5 * m * floats.Dot(v, v)
	}
	return ke, nil
}

//ScaleKineticEnergy rescales velo in place so its kinetic energy becomes target.
func ScaleKineticEnergy(mass []float64, velo *v3.Matrix, target float64) error {
	if target < 0 || math.IsNaN(target) {
		return Errorf(ErrInvalidConfiguration, "ScaleKineticEnergy", "invalid target kinetic energy %g", target)
	}
	ke, err := KineticEnergy(mass, velo)
	if err != nil {
		return Decorate(err, ErrShapeMismatch, "ScaleKineticEnergy")
	}
	if ke == 0 {
		if target == 0 {
			return nil
		}
		return NewError(ErrInvalidConfiguration, "can't scale zero velocities to a non-zero kinetic energy", "ScaleKineticEnergy")
	}
	velo.Dense.Scale(math.Sqrt(target/ke), velo.Dense)
	return nil
}

func kinShapeError(caller string, mass []float64, velo *v3.Matrix) error {
	n := 0
	if velo != nil {
		n = velo.NVecs()
	}
	return Errorf(ErrShapeMismatch, caller, "%d masses for %d velocity vectors", len(mass), n)
}
