/*
 * namd_test.go, part of goNAMD.
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
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/rmera/namd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMatrix(Te *testing.T, data ...float64) *v3.Matrix {
	m, err := v3.NewMatrix(data)
	require.NoError(Te, err)
	return m
}

func TestKineticEnergy(Te *testing.T) {
	velo := mustMatrix(Te, 1, 0, 0, 0, 2, 2)
	ke, err := KineticEnergy([]float64{2, 0.5}, velo)
	require.NoError(Te, err)
	assert.InDelta(Te, 0.5*2*1+0.5*0.5*8, ke, 1e-12)

	_, err = KineticEnergy([]float64{1}, velo)
	assert.True(Te, errors.Is(err, ErrShapeMismatch))
}

func TestScaleKineticEnergy(Te *testing.T) {
	mass := []float64{1, 3}
	velo := mustMatrix(Te, 1, 1, 0, 0, 0, 1)
	require.NoError(Te, ScaleKineticEnergy(mass, velo, 5))
	ke, err := KineticEnergy(mass, velo)
	require.NoError(Te, err)
	assert.InDelta(Te, 5, ke, 1e-12)

	zero := v3.Zeros(2)
	assert.NoError(Te, ScaleKineticEnergy(mass, zero, 0))
	err = ScaleKineticEnergy(mass, zero, 1)
	assert.True(Te, errors.Is(err, ErrInvalidConfiguration))
	err = ScaleKineticEnergy(mass, velo, -1)
	assert.True(Te, errors.Is(err, ErrInvalidConfiguration))
}

//With zero forces, a position step followed by a velocity step
//is just free flight.
func TestVerletRoundTrip(Te *testing.T) {
	mass := []float64{1, 2}
	coords := mustMatrix(Te, 0, 0, 0, 1, 1, 1)
	velo := mustMatrix(Te, 0.1, -0.2, 0.3, 0, 0, 1)
	zero := v3.Zeros(2)
	dt := 0.5
	next, err := AdvancePosition(coords, velo, zero, mass, dt)
	require.NoError(Te, err)
	nvelo, err := AdvanceVelocity(velo, zero, zero, mass, dt)
	require.NoError(Te, err)
	expected := coords.Clone()
	expected.AddScaled(coords, dt, velo)
	assert.InDeltaSlice(Te, expected.Flat(), next.Flat(), 1e-12)
	assert.InDeltaSlice(Te, velo.Flat(), nvelo.Flat(), 1e-12)
	//inputs are not touched
	assert.Equal(Te, []float64{0, 0, 0, 1, 1, 1}, coords.Flat())
}

func TestVerletConstantForce(Te *testing.T) {
	mass := []float64{2}
	coords := mustMatrix(Te, 0, 0, 0)
	velo := mustMatrix(Te, 1, 0, 0)
	force := mustMatrix(Te, 4, 0, -2)
	dt := 0.1
	next, err := AdvancePosition(coords, velo, force, mass, dt)
	require.NoError(Te, err)
	assert.InDeltaSlice(Te, []float64{0.1 + 0.5*2*0.01, 0, -0.5 * 0.01}, next.Flat(), 1e-12)
	nvelo, err := AdvanceVelocity(velo, force, force, mass, dt)
	require.NoError(Te, err)
	assert.InDeltaSlice(Te, []float64{1.2, 0, -0.1}, nvelo.Flat(), 1e-12)
}

func TestVerletShapeMismatch(Te *testing.T) {
	coords := mustMatrix(Te, 0, 0, 0, 1, 1, 1)
	velo := mustMatrix(Te, 0, 0, 0)
	_, err := AdvancePosition(coords, velo, v3.Zeros(2), []float64{1, 1}, 0.1)
	assert.True(Te, errors.Is(err, ErrShapeMismatch))
	_, err = AdvanceVelocity(coords, coords, nil, []float64{1, 1}, 0.1)
	assert.True(Te, errors.Is(err, ErrShapeMismatch))
	_, err = AdvancePosition(coords, coords, coords, []float64{1}, 0.1)
	assert.True(Te, errors.Is(err, ErrShapeMismatch))
}

func TestStateSet(Te *testing.T) {
	S, err := NewStateSet([]int{1, 1, 3}, nil, []int{2, 0, 1})
	require.NoError(Te, err)
	assert.Equal(Te, []string{"S0", "S1", "T1"}, S.Labels())
	assert.Equal(Te, 2, S.OracleIndex(0))
	s, err := S.FromOracle(1)
	require.NoError(Te, err)
	assert.Equal(Te, State(2), s)
	assert.False(Te, S.SameMultiplicity(0, 2))
	assert.True(Te, S.SameMultiplicity(0, 1))
	assert.Equal(Te, 3, S.OracleWidth())
	t1, err := S.Parse("t1")
	require.NoError(Te, err)
	assert.Equal(Te, State(2), t1)
	_, err = S.FromOracle(5)
	assert.True(Te, errors.Is(err, ErrShapeMismatch))

	_, err = NewStateSet([]int{1, 1}, nil, []int{0, 0})
	assert.True(Te, errors.Is(err, ErrInvalidConfiguration))
	_, err = NewStateSet(nil, nil, nil)
	assert.True(Te, errors.Is(err, ErrInvalidConfiguration))
}

func TestSystem(Te *testing.T) {
	states, err := Singlets(2)
	require.NoError(Te, err)
	key := AtomTypeKey{"O": {1, 0}, "H": {0, 1}}
	sys, err := NewSystem([]string{"O", "H", "H"}, nil, key, states)
	require.NoError(Te, err)
	assert.Equal(Te, 3, sys.Len())
	mO, err := MassOf("o")
	require.NoError(Te, err)
	assert.InDelta(Te, 15.999*AMU2AU, mO, 1e-9)
	assert.InDelta(Te, mO, sys.Mass(0), 1e-12)

	m := sys.Masses()
	m[0] = -1
	assert.InDelta(Te, mO, sys.Mass(0), 1e-12, "System must not be mutable through its accessors")
	oh := sys.OneHot()
	typ, err := key.TypeOf(oh[1])
	require.NoError(Te, err)
	assert.Equal(Te, "H", typ)

	_, err = NewSystem([]string{"O", "Xx"}, nil, nil, states)
	assert.True(Te, errors.Is(err, ErrInvalidConfiguration))
	_, err = NewSystem([]string{"O", "H"}, []float64{1}, nil, states)
	assert.True(Te, errors.Is(err, ErrShapeMismatch))
	_, err = NewSystem([]string{"O", "C"}, nil, key, states)
	assert.True(Te, errors.Is(err, ErrInvalidConfiguration))
	_, err = NewSystem([]string{"H", "H"}, []float64{1837, math.NaN()}, nil, states)
	assert.True(Te, errors.Is(err, ErrInvalidConfiguration))
	v, ok := AtomTypeKey{"o": {1, 0}}.Get("O")
	assert.True(Te, ok)
	assert.Equal(Te, []float64{1, 0}, v)
}

func TestXYZ(Te *testing.T) {
	coords := mustMatrix(Te, 0, 0, 0, 0, 0, 1.8)
	velo := mustMatrix(Te, 0, 0, 1e-3, 0, 0, -1e-3)
	var buf bytes.Buffer
	require.NoError(Te, XYZWrite(&buf, []string{"H", "H"}, coords, velo, "frame 0"))
	require.NoError(Te, XYZWrite(&buf, []string{"H", "H"}, coords, velo, "frame 1"))
	frames, err := XYZRead(strings.NewReader(buf.String()))
	require.NoError(Te, err)
	require.Len(Te, frames, 2)
	assert.Equal(Te, "frame 1", frames[1].Comment)
	assert.Equal(Te, []string{"H", "H"}, frames[0].Symbols)
	assert.InDeltaSlice(Te, coords.Flat(), frames[0].Coords.Flat(), 1e-5)
	require.NotNil(Te, frames[0].Velo)
	assert.InDeltaSlice(Te, velo.Flat(), frames[0].Velo.Flat(), 1e-8)

	frames, err = XYZRead(strings.NewReader("1\nno velocities\nC 1.0 0 0\n"))
	require.NoError(Te, err)
	assert.Nil(Te, frames[0].Velo)
	assert.InDelta(Te, A2Bohr, frames[0].Coords.At(0, 0), 1e-9)

	_, err = XYZRead(strings.NewReader("3\ntruncated\nC 0 0 0\n"))
	assert.Error(Te, err)
}

func TestErrors(Te *testing.T) {
	err := NewError(ErrDegenerateCoupling, "flat", "Estimate")
	assert.False(Te, IsCritical(err))
	derr := Decorate(err, ErrOracleFailure, "Decide")
	assert.True(Te, errors.Is(derr, ErrDegenerateCoupling))
	assert.Contains(Te, derr.Error(), "Estimate <- Decide")

	foreign := errors.New("model crashed")
	derr = Decorate(foreign, ErrOracleFailure, "Step")
	assert.True(Te, errors.Is(derr, ErrOracleFailure))
	assert.True(Te, errors.Is(derr, foreign))
	assert.True(Te, IsCritical(derr))
	assert.Nil(Te, Decorate(nil, ErrOracleFailure, "Step"))
}
