/*
 * zn_test.go, part of goNAMD.
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

package zn

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rmera/namd"
	"github.com/rmera/namd/oracle"
	"github.com/rmera/namd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hmass = 1.008 * namd.AMU2AU

//crossingInput puts two H atoms along z at distances r-d, r, r+d of
//an avoided crossing, so the gap has its minimum at the previous point.
func crossingInput(Te *testing.T, coupling, d, ke float64) *Input {
	C := &oracle.Crossing{A: 0, B: 1, K: 0.2, R1: 2, R2: 4, Shift: 0.05, Coupling: coupling}
	rc, _ := C.CrossingPoint()
	in := &Input{Masses: []float64{hmass, hmass}, Kinetic: ke, From: 1, To: 0, Threshold: 0.5}
	for i, r := range []float64{rc + d, rc, rc - d} {
		coords, err := v3.NewMatrix([]float64{0, 0, 0, 0, 0, r})
		require.NoError(Te, err)
		R, err := C.Evaluate(context.Background(), &oracle.Structure{Coords: coords, Symbols: []string{"H", "H"}, Masses: in.Masses})
		require.NoError(Te, err)
		in.Points[i] = Point{Coords: coords, Energies: R.Energies, Forces: R.Forces}
	}
	return in
}

func TestEstimateCrossing(Te *testing.T) {
	in := crossingInput(Te, 0.002, 0.02, 0.01)
	res, err := Estimate(in)
	require.NoError(Te, err)
	assert.True(Te, res.Evaluated)
	assert.False(Te, math.IsNaN(res.Probability))
	assert.GreaterOrEqual(Te, Clamp(res.Probability), 0.0)
	assert.LessOrEqual(Te, Clamp(res.Probability), 1.0)
	assert.Greater(Te, res.Probability, 0.0)
	require.NotNil(Te, res.NAC)
	assert.InDelta(Te, 1, res.NAC.Norm(0), 1e-12)
	//the coupling is along the bond
	for i := 0; i < 2; i++ {
		assert.InDelta(Te, 0, res.NAC.At(i, 0), 1e-12)
		assert.InDelta(Te, 0, res.NAC.At(i, 1), 1e-12)
	}
	assert.Less(Te, res.Gaps[1], res.Gaps[0])
	assert.Less(Te, res.Gaps[1], res.Gaps[2])
}

//A weaker coupling means a more diabatic passage, so a larger hopping probability.
func TestEstimateCouplingStrength(Te *testing.T) {
	weak, err := Estimate(crossingInput(Te, 0.0005, 0.02, 0.01))
	require.NoError(Te, err)
	strong, err := Estimate(crossingInput(Te, 0.01, 0.02, 0.01))
	require.NoError(Te, err)
	assert.Greater(Te, weak.Probability, strong.Probability)
}

func TestEstimateOutsideWindow(Te *testing.T) {
	in := crossingInput(Te, 0.002, 0.02, 0.01)
	in.Threshold = 1e-6
	res, err := Estimate(in)
	require.NoError(Te, err)
	assert.False(Te, res.Evaluated)
	assert.Equal(Te, 0.0, res.Probability)
	assert.Nil(Te, res.NAC)

	//monotonic gap: no minimum at the previous step
	in = crossingInput(Te, 0.002, 0.02, 0.01)
	in.Points[0], in.Points[1] = in.Points[1], in.Points[0]
	res, err = Estimate(in)
	require.NoError(Te, err)
	assert.False(Te, res.Evaluated)
}

func TestEstimateDegenerate(Te *testing.T) {
	in := &Input{Masses: []float64{1}, Kinetic: 0.1, From: 0, To: 1, Threshold: 1}
	for i, gap := range []float64{0.3, 0.1, 0.3} {
		c, _ := v3.NewMatrix([]float64{0, 0, float64(i)})
		in.Points[i] = Point{Coords: c, Energies: []float64{0, gap}, Forces: []*v3.Matrix{v3.Zeros(1), v3.Zeros(1)}}
	}
	_, err := Estimate(in)
	require.Error(Te, err)
	assert.True(Te, errors.Is(err, namd.ErrDegenerateCoupling))
	assert.False(Te, namd.IsCritical(err))
}

func TestEstimateShapes(Te *testing.T) {
	in := crossingInput(Te, 0.002, 0.02, 0.01)
	in.Masses = []float64{1}
	_, err := Estimate(in)
	assert.True(Te, errors.Is(err, namd.ErrShapeMismatch))
	in = crossingInput(Te, 0.002, 0.02, 0.01)
	in.To = 5
	_, err = Estimate(in)
	assert.True(Te, errors.Is(err, namd.ErrShapeMismatch))
}

func TestClamp(Te *testing.T) {
	assert.Equal(Te, 0.0, Clamp(-0.1))
	assert.Equal(Te, 1.0, Clamp(3))
	assert.Equal(Te, 0.0, Clamp(math.NaN()))
	assert.Equal(Te, 0.25, Clamp(0.25))
}
