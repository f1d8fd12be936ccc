/*
 * initcond.go, part of goNAMD.
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

//Package initcond samples initial conditions for ensembles of trajectories.
package initcond

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/rmera/namd"
	"github.com/rmera/namd/dyn"
	"github.com/rmera/namd/oracle"
	"github.com/rmera/namd/v3"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

//Sampler gives the initial conditions for the ith trajectory of an ensemble.
//src is the random source for that trajectory only.
type Sampler interface {
	Sample(i int, src rand.Source) (*dyn.Initial, error)
}

//MaxwellBoltzmann returns random velocities for atoms with masses at the temperature temp (K), with
//no center of mass motion.
func MaxwellBoltzmann(masses []float64, temp float64, src rand.Source) *v3.Matrix {
	velo := v3.Zeros(len(masses))
	if temp <= 0 {
		return velo
	}
	for i, m := range masses {
		n := distuv.Normal{Mu: 0, Sigma: math.Sqrt(namd.KB * temp / m), Src: src}
		for j := 0; j < 3; j++ {
			velo.Set(i, j, n.Rand())
		}
	}
	RemoveCOM(masses, velo)
	return velo
}

//RemoveCOM removes, in place, the center of mass velocity from velo.
func RemoveCOM(masses []float64, velo *v3.Matrix) {
	com := make([]float64, 3)
	for i, m := range masses {
		floats.AddScaled(com, m, velo.RawRowView(i))
	}
	floats.Scale(1/floats.Sum(masses), com)
	for i := range masses {
		floats.Sub(velo.RawRowView(i), com)
	}
}

//Boltzmann samples Maxwell-Boltzmann velocities at Temp, always on the same Coords.
type Boltzmann struct {
	Masses []float64
	Coords *v3.Matrix
	Temp   float64
	State  namd.State
}

//Sample implements Sampler.
func (B *Boltzmann) Sample(i int, src rand.Source) (*dyn.Initial, error) {
	if B.Coords == nil || B.Coords.NVecs() != len(B.Masses) {
		return nil, namd.NewError(namd.ErrShapeMismatch, "coordinates don't match the masses", "Boltzmann.Sample")
	}
	return &dyn.Initial{Coords: B.Coords.Clone(), Velo: MaxwellBoltzmann(B.Masses, B.Temp, src), State: B.State}, nil
}

//Frames takes the initial conditions from the frames of a multi-XYZ file, in order, starting from First.
//Frames without velocities start at rest.
type Frames struct {
	Frames []*namd.XYZFrame
	First  int
	State  namd.State
}

//FromXYZ reads the frames of a multi-XYZ file.
func FromXYZ(name string, first int, state namd.State) (*Frames, error) {
	f, err := namd.XYZFileRead(name)
	if err != nil {
		return nil, err
	}
	if first < 0 || first >= len(f) {
		return nil, namd.Errorf(namd.ErrInvalidConfiguration, "FromXYZ", "first frame %d out of %d", first, len(f))
	}
	return &Frames{Frames: f, First: first, State: state}, nil
}

//Sample implements Sampler. src is not used.
func (F *Frames) Sample(i int, src rand.Source) (*dyn.Initial, error) {
	k := F.First + i
	if k < 0 || k >= len(F.Frames) {
		return nil, namd.Errorf(namd.ErrInvalidConfiguration, "Frames.Sample", "no frame %d for trajectory %d, only %d frames", k, i, len(F.Frames))
	}
	fr := F.Frames[k]
	ret := &dyn.Initial{Coords: fr.Coords.Clone(), State: F.State}
	if fr.Velo != nil {
		ret.Velo = fr.Velo.Clone()
	}
	return ret, nil
}

//Wigner samples the harmonic Wigner distribution of the normal modes of a minimum,
//at a temperature.
type Wigner struct {
	masses []float64
	coords *v3.Matrix
	freqs  []float64    //angular frequencies, atomic units
	modes  [][]float64  //mass-weighted normal modes, unit norm
	temp   float64
	state  namd.State
}

//Step for the finite difference Hessian, in Bohr.
const hessStep = 1e-3

//Frequencies below this (about 50 cm-1) are taken as translations, rotations or noise.
const minFreq = 2.3e-4

//Hessian returns the Cartesian Hessian of the state's energy at coords, from central differences of the oracle forces.
//It is symmetrized.
func Hessian(ctx context.Context, o oracle.Oracle, sys *namd.System, coords *v3.Matrix, state namd.State) (*mat.SymDense, error) {
	n := 3 * sys.Len()
	H := mat.NewDense(n, n, nil)
	flat := coords.Flat()
	for i := 0; i < n; i++ {
		var f [2][]float64
		for j, d := range []float64{hessStep, -hessStep} {
			moved := append([]float64(nil), flat...)
			moved[i] += d
			c, _ := v3.NewMatrix(moved)
			res, err := oracle.Evaluate(ctx, o, sys, c)
			if err != nil {
				return nil, namd.Decorate(err, namd.ErrOracleFailure, "Hessian")
			}
			f[j] = res.Forces[state].Flat()
		}
		for k := 0; k < n; k++ {
			H.Set(i, k, -(f[0][k]-f[1][k])/(2*hessStep))
		}
	}
	S := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for k := i; k < n; k++ {
			S.SetSym(i, k, 0.5*(H.At(i, k)+H.At(k, i)))
		}
	}
	return S, nil
}

//NewWigner computes the normal modes of sys at coords, on the given state, and returns a sampler for
//temperature temp (K). coords should be a minimum. Imaginary and very soft modes are skipped, with a warning.
func NewWigner(ctx context.Context, o oracle.Oracle, sys *namd.System, coords *v3.Matrix, state namd.State, temp float64) (*Wigner, error) {
	H, err := Hessian(ctx, o, sys, coords, state)
	if err != nil {
		return nil, namd.Decorate(err, namd.ErrOracleFailure, "NewWigner")
	}
	masses := sys.Masses()
	n := H.SymmetricDim()
	for i := 0; i < n; i++ {
		for k := i; k < n; k++ {
			H.SetSym(i, k, H.At(i, k)/math.Sqrt(masses[i/3]*masses[k/3]))
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(H, true); !ok {
		return nil, namd.NewError(namd.ErrInvalidConfiguration, "Hessian diagonalization failed", "NewWigner")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	W := &Wigner{masses: masses, coords: coords.Clone(), temp: temp, state: state}
	imaginary := 0
	for k, v := range vals {
		if v < 0 && math.Sqrt(-v) > minFreq {
			imaginary++
			continue
		}
		if v <= 0 || math.Sqrt(v) < minFreq {
			continue
		}
		W.freqs = append(W.freqs, math.Sqrt(v))
		W.modes = append(W.modes, mat.Col(nil, k, &vecs))
	}
	if imaginary > 0 {
		log.Printf("goNAMD: %d imaginary frequencies skipped in Wigner sampling. The structure is not a minimum", imaginary)
	}
	if len(W.freqs) == 0 {
		return nil, namd.NewError(namd.ErrInvalidConfiguration, "no vibrational modes", "NewWigner")
	}
	return W, nil
}

//Frequencies returns the angular frequencies of the modes used, in atomic units.
func (W *Wigner) Frequencies() []float64 { return append([]float64(nil), W.freqs...) }

//widths returns the standard deviations of the mass-weighted coordinate and momentum of a mode of angular frequency w.
func (W *Wigner) widths(w float64) (sq, sp float64) {
	coth := 1.0
	if W.temp > 0 {
		coth = 1 / math.Tanh(w/(2*namd.KB*W.temp))
	}
	return math.Sqrt(coth / (2 * w)), math.Sqrt(coth * w / 2)
}

//Sample implements Sampler.
func (W *Wigner) Sample(i int, src rand.Source) (*dyn.Initial, error) {
	n := len(W.masses)
	dq := make([]float64, 3*n)
	dv := make([]float64, 3*n)
	for k, w := range W.freqs {
		sq, sp := W.widths(w)
		q := distuv.Normal{Mu: 0, Sigma: sq, Src: src}.Rand()
		p := distuv.Normal{Mu: 0, Sigma: sp, Src: src}.Rand()
		floats.AddScaled(dq, q, W.modes[k])
		floats.AddScaled(dv, p, W.modes[k])
	}
	for j := range dq {
		s := math.Sqrt(W.masses[j/3])
		dq[j] /= s
		dv[j] /= s
	}
	coords := W.coords.Clone()
	for a := 0; a < n; a++ {
		floats.Add(coords.RawRowView(a), dq[3*a:3*a+3])
	}
	velo, err := v3.NewMatrix(dv)
	if err != nil {
		return nil, namd.Decorate(err, namd.ErrShapeMismatch, fmt.Sprintf("Wigner.Sample %d", i))
	}
	return &dyn.Initial{Coords: coords, Velo: velo, State: W.state}, nil
}
