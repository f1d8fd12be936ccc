/*
 * zn.go, part of goNAMD.
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

//Package zn estimates Zhu-Nakamura hopping probabilities between two electronic states,
//without nonadiabatic couplings, from the energies and forces at three consecutive time steps.
//
//The formulas follow the generalized trajectory surface hopping of
//Zhu and Nakamura (J. Chem. Phys. 102, 7448 (1995)), as given in the supporting
//information of Phys. Chem. Chem. Phys. 20, 21457 (2018).
package zn

import (
	"math"

	"github.com/rmera/namd"
	"github.com/rmera/namd/v3"
	"gonum.org/v1/gonum/floats"
)

//Below this, a coordinate didn't move between the first and last points of the window.
const appzero = 1e-12

//Point is what the estimator needs from one time step: coordinates,
//and the energies and forces of every state, indexed by namd.State.
type Point struct {
	Coords   *v3.Matrix
	Energies []float64
	Forces   []*v3.Matrix
}

//Input for one state pair. Points is indexed by time offset: 0 is the current step,
//1 the previous and 2 the one before. The hop is evaluated at the previous step.
type Input struct {
	Points    [3]Point
	Masses    []float64
	Kinetic   float64 //Kinetic energy of the nuclei
	From      namd.State
	To        namd.State
	Threshold float64 //largest gap, at the previous step, for which the pair is evaluated
}

//Result of an estimation. Probability is not clamped. NAC is the unit vector, in mass-weighted
//coordinates, along which velocities are rescaled if the hop happens, stored as an Nx3 matrix.
//NAC is nil when the pair was not evaluated.
type Result struct {
	Probability float64
	NAC         *v3.Matrix
	Gaps        [3]float64 //|E_To-E_From| at each point of the window
	A2, B2      float64
	Evaluated   bool //false if the gap at the previous step was not a local minimum under the threshold
}

//Clamp puts p in [0,1]. NaN goes to 0.
func Clamp(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

//Gaps returns the energy gap between states a and b at each point of the window.
func Gaps(points [3]Point, a, b namd.State) [3]float64 {
	var ret [3]float64
	for i, p := range points {
		ret[i] = math.Abs(p.Energies[b] - p.Energies[a])
	}
	return ret
}

//InWindow returns true if the gap at the previous step is a strict local minimum not larger than threshold.
func InWindow(gaps [3]float64, threshold float64) bool {
	return gaps[1] < gaps[0] && gaps[1] < gaps[2] && gaps[1] <= threshold
}

//Estimate returns the Zhu-Nakamura probability of a hop from in.From to in.To, evaluated at the previous step.
//If the gap doesn't go through a minimum under the threshold, the result has zero probability and is not
//an error. Flat or parallel surfaces, which make the formula blow up, give an error of kind DegenerateCoupling.
func Estimate(in *Input) (*Result, error) {
	if err := check(in); err != nil {
		return nil, namd.Decorate(err, namd.ErrShapeMismatch, "Estimate")
	}
	ret := &Result{Gaps: Gaps(in.Points, in.From, in.To)}
	if !InWindow(ret.Gaps, in.Threshold) {
		return ret, nil
	}
	ret.Evaluated = true
	low, high := in.From, in.To
	if low > high {
		low, high = high, low
	}
	c, p, pp := in.Points[0], in.Points[1], in.Points[2]
	n := len(in.Masses)
	f1 := make([]float64, 3*n)
	f2 := make([]float64, 3*n)
	rc, rp, rpp := c.Coords.Flat(), p.Coords.Flat(), pp.Coords.Flat()
	fcl, fch := c.Forces[low].Flat(), c.Forces[high].Flat()
	fppl, fpph := pp.Forces[low].Flat(), pp.Forces[high].Flat()
	for i := range f1 {
		d := rc[i] - rpp[i]
		if math.Abs(d) < appzero {
			f1[i] = -0.5 * (fcl[i] + fpph[i])
			f2[i] = -0.5 * (fch[i] + fppl[i])
			continue
		}
		bt := -1 / d
		//the diabatic surfaces swap between pp and c, hence the crossed indexes.
		f1[i] = bt * (fcl[i]*(rp[i]-rpp[i]) - fpph[i]*(rp[i]-rc[i]))
		f2[i] = bt * (fch[i]*(rp[i]-rpp[i]) - fppl[i]*(rp[i]-rc[i]))
	}
	var fa2, f12 float64
	nac := make([]float64, 3*n)
	for i := range f1 {
		m := in.Masses[i/3]
		diff := f2[i] - f1[i]
		fa2 += diff * diff / m
		f12 += f1[i] * f2[i] / m
		nac[i] = diff / math.Sqrt(m)
	}
	fA := math.Sqrt(fa2)
	fB := math.Sqrt(math.Abs(f12))
	gap := ret.Gaps[1]
	ex := 0.5 * (p.Energies[in.From] + p.Energies[in.To])
	etot := p.Energies[in.From] + in.Kinetic
	ret.A2 = fA * fB / (2 * gap * gap * gap)
	ret.B2 = (etot - ex) * fA / (fB * gap)
	sign := 1.0
	if f12 < 0 {
		sign = -1
	}
	root := math.Sqrt(math.Abs(ret.B2*ret.B2 + sign))
	ret.Probability = math.Exp(-math.Pi / (4 * math.Sqrt(ret.A2)) * math.Sqrt(2/(ret.B2+root)))
	if !finite(ret.A2, ret.B2, ret.Probability) || ret.A2 <= 0 || ret.B2+root <= 0 {
		return nil, namd.Errorf(namd.ErrDegenerateCoupling, "Estimate", "a²=%g b²=%g p=%g for %d->%d", ret.A2, ret.B2, ret.Probability, in.From, in.To)
	}
	norm := floats.Norm(nac, 2)
	if norm < appzero || math.IsNaN(norm) {
		return nil, namd.Errorf(namd.ErrDegenerateCoupling, "Estimate", "vanishing coupling direction for %d->%d", in.From, in.To)
	}
	floats.Scale(1/norm, nac)
	ret.NAC, _ = v3.NewMatrix(nac)
	return ret, nil
}

func finite(v ...float64) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func check(in *Input) error {
	if in == nil {
		return namd.NewError(namd.ErrShapeMismatch, "nil input", "check")
	}
	n := len(in.Masses)
	if n == 0 {
		return namd.NewError(namd.ErrShapeMismatch, "no masses", "check")
	}
	if in.From == in.To {
		return namd.Errorf(namd.ErrShapeMismatch, "check", "hop from state %d to itself", in.From)
	}
	for t, p := range in.Points {
		if p.Coords == nil || p.Coords.NVecs() != n {
			return namd.Errorf(namd.ErrShapeMismatch, "check", "coordinates at offset %d don't match %d masses", t, n)
		}
		k := len(p.Energies)
		if int(in.From) >= k || int(in.To) >= k || in.From < 0 || in.To < 0 || len(p.Forces) != k {
			return namd.Errorf(namd.ErrShapeMismatch, "check", "states %d,%d out of %d energies and %d force sets at offset %d", in.From, in.To, k, len(p.Forces), t)
		}
		for _, s := range []namd.State{in.From, in.To} {
			if p.Forces[s] == nil || p.Forces[s].NVecs() != n {
				return namd.Errorf(namd.ErrShapeMismatch, "check", "forces of state %d at offset %d don't match %d masses", s, t, n)
			}
		}
	}
	return nil
}
