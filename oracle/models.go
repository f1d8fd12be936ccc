/*
 * models.go, part of goNAMD.
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

package oracle

import (
	"context"
	"math"

	"github.com/rmera/namd"
	"github.com/rmera/namd/v3"
	"gonum.org/v1/gonum/floats"
)

//Model surfaces. They are mostly useful to test and to benchmark,
//but Crossing is also a reasonable toy for a photochemical funnel.

//Constant returns the same energies for every structure, and zero forces.
type Constant struct {
	Energies []float64
}

//Evaluate implements Oracle.
func (C *Constant) Evaluate(ctx context.Context, s *Structure) (*Result, error) {
	if len(C.Energies) == 0 {
		return nil, namd.NewError(namd.ErrInvalidConfiguration, "no energies", "Constant.Evaluate")
	}
	R := NewResult(s.Len(), len(C.Energies))
	copy(R.Energies, C.Energies)
	return R, nil
}

//Harmonic puts each state in an isotropic harmonic well centered in Center,
//E_k = Offsets[k] + ½ K Σ|x_i-c_i|². The surfaces never cross if the offsets differ.
type Harmonic struct {
	K       float64
	Offsets []float64
	Center  *v3.Matrix
}

//Evaluate implements Oracle.
func (H *Harmonic) Evaluate(ctx context.Context, s *Structure) (*Result, error) {
	if H.Center == nil || !H.Center.SameShape(s.Coords) {
		return nil, namd.NewError(namd.ErrShapeMismatch, "center and coordinates don't match", "Harmonic.Evaluate")
	}
	disp := v3.Zeros(s.Len())
	disp.Sub(s.Coords.Dense, H.Center.Dense)
	e := 0.5 * H.K * disp.Dot(disp)
	R := NewResult(s.Len(), len(H.Offsets))
	for i, off := range H.Offsets {
		R.Energies[i] = off + e
		R.Forces[i].Scale(-H.K, disp.Dense)
	}
	return R, nil
}

//Crossing is a two-state avoided crossing along the distance r between atoms A and B.
//The diabatic surfaces are harmonic, V1 = ½K(r-R1)², V2 = ½K(r-R2)² + Shift, coupled by a
//constant Coupling. The oracle returns the two adiabatic states. All other atoms feel no force.
//The minimum gap, 2|Coupling|, is at the r where V1 = V2.
type Crossing struct {
	A, B     int
	K        float64
	R1, R2   float64
	Shift    float64
	Coupling float64
}

//Evaluate implements Oracle.
func (C *Crossing) Evaluate(ctx context.Context, s *Structure) (*Result, error) {
	n := s.Len()
	if C.A < 0 || C.B < 0 || C.A >= n || C.B >= n || C.A == C.B {
		return nil, namd.Errorf(namd.ErrShapeMismatch, "Crossing.Evaluate", "atoms %d and %d don't define a distance in a system of %d atoms", C.A, C.B, n)
	}
	ab := make([]float64, 3)
	floats.SubTo(ab, s.Coords.RawRowView(C.A), s.Coords.RawRowView(C.B))
	r := floats.Norm(ab, 2)
	if r == 0 {
		return nil, namd.NewError(namd.ErrOracleFailure, "atoms on top of each other", "Crossing.Evaluate")
	}
	E, dE := C.Adiabatic(r)
	R := NewResult(n, 2)
	for i := range E {
		R.Energies[i] = E[i]
		//F_A = -dE/dr * (x_A-x_B)/r, F_B = -F_A
		floats.ScaleTo(R.Forces[i].RawRowView(C.A), -dE[i]/r, ab)
		floats.ScaleTo(R.Forces[i].RawRowView(C.B), dE[i]/r, ab)
	}
	return R, nil
}

//Adiabatic returns the lower and upper adiabatic energies at the distance r, and their
//derivatives with respect to r.
func (C *Crossing) Adiabatic(r float64) (E, dE [2]float64) {
	v1 := 0.5 * C.K * (r - C.R1) * (r - C.R1)
	v2 := 0.5*C.K*(r-C.R2)*(r-C.R2) + C.Shift
	d1 := C.K * (r - C.R1)
	d2 := C.K * (r - C.R2)
	mean, half := 0.5*(v1+v2), 0.5*(v1-v2)
	root := math.Sqrt(half*half + C.Coupling*C.Coupling)
	droot := 0.0
	if root > 0 {
		droot = half * 0.5 * (d1 - d2) / root
	}
	dmean := 0.5 * (d1 + d2)
	E = [2]float64{mean - root, mean + root}
	dE = [2]float64{dmean - droot, dmean + droot}
	return
}

//CrossingPoint returns the distance at which the diabatic surfaces cross, and the gap there.
func (C *Crossing) CrossingPoint() (r, gap float64) {
	//½K(r-R1)² = ½K(r-R2)² + Shift is linear in r
	r = (C.Shift/C.K + 0.5*(C.R2*C.R2-C.R1*C.R1)) / (C.R2 - C.R1)
	return r, 2 * math.Abs(C.Coupling)
}
