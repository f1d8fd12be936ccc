/*
 * initcond_test.go, part of goNAMD.
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

package initcond

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rmera/namd"
	"github.com/rmera/namd/oracle"
	"github.com/rmera/namd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
)

func TestMaxwellBoltzmann(Te *testing.T) {
	const n = 300
	masses := make([]float64, n)
	for i := range masses {
		masses[i] = 12 * namd.AMU2AU
	}
	velo := MaxwellBoltzmann(masses, 300, rand.NewSource(3))
	com := make([]float64, 3)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			com[j] += velo.At(i, j)
		}
	}
	assert.InDeltaSlice(Te, []float64{0, 0, 0}, com, 1e-12)
	ke, err := namd.KineticEnergy(masses, velo)
	require.NoError(Te, err)
	expected := 1.5 * float64(n-1) * namd.KB * 300
	assert.InDelta(Te, 1, ke/expected, 0.1)

	zero := MaxwellBoltzmann(masses, 0, rand.NewSource(3))
	assert.Equal(Te, 0.0, zero.Norm(0))

	a := MaxwellBoltzmann(masses[:3], 300, rand.NewSource(9))
	b := MaxwellBoltzmann(masses[:3], 300, rand.NewSource(9))
	assert.Equal(Te, a.Flat(), b.Flat())
}

func TestWignerHarmonic(Te *testing.T) {
	states, err := namd.Singlets(2)
	require.NoError(Te, err)
	sys, err := namd.NewSystem([]string{"H", "H"}, nil, nil, states)
	require.NoError(Te, err)
	m := sys.Mass(0)
	K := 0.1
	o := &oracle.Harmonic{K: K, Offsets: []float64{0, 0.2}, Center: v3.Zeros(2)}
	W, err := NewWigner(context.Background(), o, sys, v3.Zeros(2), 0, 0)
	require.NoError(Te, err)
	freqs := W.Frequencies()
	require.Len(Te, freqs, 6)
	for _, f := range freqs {
		assert.InDelta(Te, math.Sqrt(K/m), f, 1e-6)
	}
	src := rand.NewSource(11)
	var x, vx []float64
	for i := 0; i < 4000; i++ {
		init, err := W.Sample(i, src)
		require.NoError(Te, err)
		assert.Equal(Te, namd.State(0), init.State)
		x = append(x, init.Coords.At(0, 0))
		vx = append(vx, init.Velo.At(1, 2))
	}
	w := math.Sqrt(K / m)
	//ground state widths: <x²> = 1/(2mω), <v²> = ω/(2m)
	assert.InDelta(Te, 1, stat.Variance(x, nil)/(1/(2*m*w)), 0.1)
	assert.InDelta(Te, 1, stat.Variance(vx, nil)/(w/(2*m)), 0.1)
	assert.InDelta(Te, 0, stat.Mean(x, nil), 3*math.Sqrt(1/(2*m*w)/4000))

	hot, err := NewWigner(context.Background(), o, sys, v3.Zeros(2), 0, 3000)
	require.NoError(Te, err)
	sq0, _ := W.widths(w)
	sqHot, _ := hot.widths(w)
	assert.Greater(Te, sqHot, sq0)
}

func TestFrames(Te *testing.T) {
	var buf bytes.Buffer
	c1, _ := v3.NewMatrix([]float64{0, 0, 0, 0, 0, 1.4})
	c2, _ := v3.NewMatrix([]float64{0, 0, 0, 0, 0, 1.6})
	v, _ := v3.NewMatrix([]float64{0, 0, 1e-4, 0, 0, -1e-4})
	require.NoError(Te, namd.XYZWrite(&buf, []string{"H", "H"}, c1, nil, "a"))
	require.NoError(Te, namd.XYZWrite(&buf, []string{"H", "H"}, c2, v, "b"))
	name := filepath.Join(Te.TempDir(), "init.xyz")
	require.NoError(Te, os.WriteFile(name, buf.Bytes(), 0o644))

	F, err := FromXYZ(name, 0, 1)
	require.NoError(Te, err)
	i0, err := F.Sample(0, nil)
	require.NoError(Te, err)
	assert.Nil(Te, i0.Velo)
	assert.Equal(Te, namd.State(1), i0.State)
	i1, err := F.Sample(1, nil)
	require.NoError(Te, err)
	assert.InDeltaSlice(Te, c2.Flat(), i1.Coords.Flat(), 1e-5)
	assert.InDeltaSlice(Te, v.Flat(), i1.Velo.Flat(), 1e-8)
	_, err = F.Sample(2, nil)
	assert.Error(Te, err)
	_, err = FromXYZ(name, 5, 0)
	assert.Error(Te, err)
}

func TestBoltzmannSampler(Te *testing.T) {
	B := &Boltzmann{Masses: []float64{1000, 1000}, Coords: v3.Zeros(2), Temp: 300, State: 1}
	init, err := B.Sample(0, rand.NewSource(1))
	require.NoError(Te, err)
	assert.Equal(Te, namd.State(1), init.State)
	assert.Greater(Te, init.Velo.Norm(0), 0.0)
	_, err = (&Boltzmann{Masses: []float64{1}, Coords: v3.Zeros(2)}).Sample(0, rand.NewSource(1))
	assert.Error(Te, err)
}
