/*
 * timecorr_test.go, part of goNAMD.
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

package timecorr

import (
	"math"
	"testing"

	"github.com/rmera/namd"
	"github.com/rmera/namd/dyn"
	"github.com/rmera/namd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(n int, period float64) []float64 {
	c := make([]float64, n)
	for i := range c {
		c[i] = math.Cos(2 * math.Pi * float64(i) / period)
	}
	return c
}

func TestAutocorrelation(Te *testing.T) {
	c := cosine(400, 20)
	ac, err := Autocorrelation(c)
	require.NoError(Te, err)
	require.Len(Te, ac, 400)
	assert.InDelta(Te, 1, ac[0], 1e-9)
	//half a period later, the signal is anticorrelated, a period later, correlated again.
	assert.Less(Te, ac[10], -0.9)
	assert.Greater(Te, ac[20], 0.9)
	for _, v := range ac {
		assert.LessOrEqual(Te, math.Abs(v), 1+1e-9)
	}
	_, err = CrossCorrelation(c, c[:10])
	assert.ErrorIs(Te, err, namd.ErrShapeMismatch)
	_, err = Autocorrelation([]float64{1, 1, 1})
	assert.Error(Te, err)
}

func TestCrossCorrelation(Te *testing.T) {
	c := cosine(200, 40)
	shifted := make([]float64, len(c))
	for i := range c {
		shifted[i] = math.Cos(2 * math.Pi * float64(i-10) / 40)
	}
	cc, err := CrossCorrelation(c, shifted)
	require.NoError(Te, err)
	best := 0
	for i := 0; i < 40; i++ {
		if cc[i] > cc[best] {
			best = i
		}
	}
	assert.Equal(Te, 10, best)
}

func TestSpectrum(Te *testing.T) {
	dt := 10.0
	period := 20.0
	c := cosine(200, period)
	freqs, power, err := Spectrum(c, dt)
	require.NoError(Te, err)
	peak, err := Peak(freqs, power)
	require.NoError(Te, err)
	assert.InDelta(Te, AU2Wavenumber/(period*dt), peak, 1e-6*peak)
	_, _, err = Spectrum(c, 0)
	assert.ErrorIs(Te, err, namd.ErrInvalidConfiguration)
}

func TestSeries(Te *testing.T) {
	h := dyn.NewHistory(3)
	for i := 0; i < 3; i++ {
		h.Add(dyn.Frame{Iteration: i, Coords: v3.Zeros(1), Energy: float64(i), Kinetic: 2 * float64(i), Energies: []float64{0, 0.1 * float64(i+1)}})
	}
	assert.Equal(Te, []float64{0, 2, 4}, Series(h, Kinetic))
	assert.Equal(Te, []float64{0, 1, 2}, Series(h, Potential))
	assert.InDeltaSlice(Te, []float64{0.1, 0.2, 0.3}, Series(h, Gap(0, 1)), 1e-12)
	assert.Contains(Te, String([]float64{1, 0.5}, namd.FS2AU), "1.00   0.5000")
}
