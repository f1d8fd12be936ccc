/*
 * hop_test.go, part of goNAMD.
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

package hop

import (
	"context"
	"errors"
	"testing"

	"github.com/rmera/namd"
	"github.com/rmera/namd/oracle"
	"github.com/rmera/namd/v3"
	"github.com/rmera/namd/zn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixed float64

func (f fixed) Float64() float64 { return float64(f) }

var hmass = 1.008 * namd.AMU2AU

//crossing returns an input where two H atoms, along z, went through
//an avoided crossing at the previous step, with velocities velo.
func crossing(Te *testing.T, state namd.State, velo ...float64) *Input {
	C := &oracle.Crossing{A: 0, B: 1, K: 0.2, R1: 2, R2: 4, Shift: 0.05, Coupling: 0.002}
	rc, _ := C.CrossingPoint()
	states, err := namd.Singlets(2)
	require.NoError(Te, err)
	v, err := v3.NewMatrix(velo)
	require.NoError(Te, err)
	in := &Input{Velo: v, Masses: []float64{hmass, hmass}, State: state, States: states, ICThreshold: 0.5, ISCThreshold: 0.1}
	in.Kinetic, err = namd.KineticEnergy(in.Masses, v)
	require.NoError(Te, err)
	for i, r := range []float64{rc - 0.02, rc, rc + 0.02} {
		coords, err := v3.NewMatrix([]float64{0, 0, 0, 0, 0, r})
		require.NoError(Te, err)
		R, err := C.Evaluate(context.Background(), &oracle.Structure{Coords: coords, Symbols: []string{"H", "H"}, Masses: in.Masses})
		require.NoError(Te, err)
		in.Points[i] = zn.Point{Coords: coords, Energies: R.Energies, Forces: R.Forces}
	}
	return in
}

func total(in *Input, out *Outcome) (before, after float64) {
	E := in.Points[0].Energies
	return in.Kinetic + E[out.From], out.Kinetic + E[out.To]
}

func TestHopDown(Te *testing.T) {
	in := crossing(Te, 1, 0, 0, -1e-3, 0, 0, 1e-3)
	D := &Decider{Method: Deterministic, Threshold: 1e-9}
	out, err := D.Decide(in)
	require.NoError(Te, err)
	require.Equal(Te, Hop, out.Kind, "probabilities: %v", out.Probabilities)
	assert.Equal(Te, namd.State(0), out.To)
	before, after := total(in, out)
	assert.InDelta(Te, before, after, 1e-12)
	assert.Greater(Te, out.Kinetic, in.Kinetic)
	//the input is not touched
	assert.Equal(Te, []float64{0, 0, -1e-3, 0, 0, 1e-3}, in.Velo.Flat())
}

func TestHopUp(Te *testing.T) {
	in := crossing(Te, 0, 0, 0, -0.01, 0, 0, 0.01)
	D := &Decider{Method: Stochastic, Rand: fixed(0)}
	out, err := D.Decide(in)
	require.NoError(Te, err)
	require.Equal(Te, Hop, out.Kind)
	assert.Equal(Te, namd.State(1), out.To)
	before, after := total(in, out)
	assert.InDelta(Te, before, after, 1e-12)
	assert.Less(Te, out.Kinetic, in.Kinetic)
}

func TestIntersystemThreshold(Te *testing.T) {
	//T1 below S1, so the pair uses the intersystem gap threshold.
	states, err := namd.NewStateSet([]int{3, 1}, nil, nil)
	require.NoError(Te, err)
	in := crossing(Te, 1, 0, 0, -1e-3, 0, 0, 1e-3)
	in.States = states
	in.ICThreshold = 0.5
	in.ISCThreshold = 1e-6
	probs, _, _, err := Probabilities(in)
	require.NoError(Te, err)
	assert.Equal(Te, []float64{0, 0}, probs)

	in.ICThreshold = 1e-6
	in.ISCThreshold = 0.5
	probs, res, _, err := Probabilities(in)
	require.NoError(Te, err)
	assert.Greater(Te, probs[0], 0.0)
	assert.Zero(Te, probs[1])
	require.NotNil(Te, res[0])
	assert.True(Te, res[0].Evaluated)
}

func TestFrustratedKeep(Te *testing.T) {
	//all the kinetic energy is perpendicular to the coupling
	in := crossing(Te, 0, 0.05, 0, 0, -0.05, 0, 0)
	D := &Decider{Method: Deterministic, Threshold: 1e-9}
	out, err := D.Decide(in)
	require.NoError(Te, err)
	require.Equal(Te, Frustrated, out.Kind)
	assert.Equal(Te, in.State, out.To)
	assert.Equal(Te, in.Velo.Flat(), out.Velocity.Flat())
	before, after := total(in, out)
	assert.InDelta(Te, before, after, 1e-12)
}

func TestFrustratedReflect(Te *testing.T) {
	in := crossing(Te, 0, 0.05, 0, -1e-5, -0.05, 0, 1e-5)
	D := &Decider{Method: Deterministic, Threshold: 1e-9, Frustrated: Reflect}
	out, err := D.Decide(in)
	require.NoError(Te, err)
	require.Equal(Te, Frustrated, out.Kind)
	assert.Equal(Te, in.State, out.To)
	assert.InDelta(Te, in.Kinetic, out.Kinetic, 1e-12)
	//the component along the bond is reversed
	assert.InDelta(Te, 1e-5, out.Velocity.At(0, 2), 1e-12)
	assert.InDelta(Te, -1e-5, out.Velocity.At(1, 2), 1e-12)
	assert.InDelta(Te, 0.05, out.Velocity.At(0, 0), 1e-12)
}

func TestNoHop(Te *testing.T) {
	in := crossing(Te, 1, 0, 0, -1e-3, 0, 0, 1e-3)
	out, err := (&Decider{Method: Stochastic, Rand: fixed(0.99999999)}).Decide(in)
	require.NoError(Te, err)
	assert.Equal(Te, NoHop, out.Kind)
	assert.Equal(Te, in.Velo.Flat(), out.Velocity.Flat())

	//outside the gap window nothing is evaluated
	in.ICThreshold = 1e-9
	out, err = (&Decider{Method: Stochastic, Rand: fixed(0)}).Decide(in)
	require.NoError(Te, err)
	assert.Equal(Te, NoHop, out.Kind)
	assert.Equal(Te, []float64{0, 0}, out.Probabilities)
}

func TestDegenerateIsNotFatal(Te *testing.T) {
	in := crossing(Te, 0, 0, 0, 0, 0, 0, 0)
	for i := range in.Points {
		in.Points[i].Forces = []*v3.Matrix{v3.Zeros(2), v3.Zeros(2)}
	}
	out, err := (&Decider{Method: Stochastic, Rand: fixed(0)}).Decide(in)
	require.NoError(Te, err)
	assert.Equal(Te, NoHop, out.Kind)
	assert.Equal(Te, []namd.State{1}, out.Degenerate)
}

func TestChoose(Te *testing.T) {
	D := &Decider{Method: Stochastic, Rand: fixed(0.6)}
	k, err := D.choose([]float64{0, 0.8, 0.7}, 0)
	require.NoError(Te, err)
	assert.Equal(Te, namd.State(2), k)
	D.Rand = fixed(0.5)
	k, _ = D.choose([]float64{0, 0.8, 0.7}, 0)
	assert.Equal(Te, namd.State(1), k)
	D.Rand = fixed(0.5)
	k, _ = D.choose([]float64{0.1, 0, 0.2}, 1)
	assert.Equal(Te, namd.State(1), k)

	D = &Decider{Method: Deterministic}
	k, _ = D.choose([]float64{0.4, 0, 0.45}, 1)
	assert.Equal(Te, namd.State(1), k)
	k, _ = D.choose([]float64{0.6, 0, 0.9}, 1)
	assert.Equal(Te, namd.State(2), k)

	_, err = (&Decider{Method: Stochastic}).choose([]float64{0, 1}, 0)
	assert.True(Te, errors.Is(err, namd.ErrInvalidConfiguration))
}

func TestNewDeciderReproducible(Te *testing.T) {
	a := NewDecider(Stochastic, Keep, 7)
	b := NewDecider(Stochastic, Keep, 7)
	for i := 0; i < 5; i++ {
		assert.Equal(Te, a.Rand.Float64(), b.Rand.Float64())
	}
}

func TestParse(Te *testing.T) {
	m, err := ParseMethod("deterministic")
	require.NoError(Te, err)
	assert.Equal(Te, Deterministic, m)
	p, err := ParsePolicy("reflect")
	require.NoError(Te, err)
	assert.Equal(Te, Reflect, p)
	_, err = ParsePolicy("bounce")
	assert.True(Te, errors.Is(err, namd.ErrInvalidConfiguration))
	assert.Equal(Te, "FRUSTRATED", Frustrated.String())
	k, err := ParseKind("HOP")
	require.NoError(Te, err)
	assert.Equal(Te, Hop, k)
	_, err = ParseKind("JUMP")
	assert.Error(Te, err)
}
