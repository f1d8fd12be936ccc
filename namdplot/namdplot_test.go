/*
 * namdplot_test.go, part of goNAMD.
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

package namdplot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rmera/namd"
	"github.com/rmera/namd/dyn"
	"github.com/rmera/namd/ensemble"
	"github.com/rmera/namd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func history(Te *testing.T, n int) *dyn.History {
	h := dyn.NewHistory(n)
	for i := 0; i < n; i++ {
		h.Add(dyn.Frame{
			Iteration: i,
			State:     namd.State(i / 5 % 2),
			Coords:    v3.Zeros(2),
			Energy:    -1 + 0.01*float64(i%7),
			Kinetic:   0.01 - 0.01*float64(i%7),
			Energies:  []float64{-1, -0.9},
		})
	}
	return h
}

func TestEnergies(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "energies.png")
	require.NoError(Te, Energies(history(Te, 20), 20, "H2", name))
	info, err := os.Stat(name)
	require.NoError(Te, err)
	assert.NotZero(Te, info.Size())
	assert.Error(Te, Energies(dyn.NewHistory(0), 20, "empty", name))
}

func TestColors(Te *testing.T) {
	seen := make(map[[3]uint8]bool)
	for i := 0; i < 4; i++ {
		r, g, b := colors(i, 4)
		seen[[3]uint8{r, g, b}] = true
	}
	assert.Len(Te, seen, 4)
	r, g, b := hsv2RGB(0, 1, 1)
	assert.Equal(Te, [3]uint8{255, 0, 0}, [3]uint8{r, g, b})
	r, g, b = hsv2RGB(120, 0, 0.5)
	assert.Equal(Te, [3]uint8{127, 127, 127}, [3]uint8{r, g, b})
}

func TestPopulations(Te *testing.T) {
	states, err := namd.Singlets(2)
	require.NoError(Te, err)
	sum := ensemble.NewSummary("run", "test", states, 20)
	for i := 0; i < 3; i++ {
		sum.Add(i, &dyn.Result{ID: "t", History: history(Te, 10+5*i), Status: dyn.Status{Phase: dyn.Terminated, Reason: dyn.MaxSteps}})
	}
	name := filepath.Join(Te.TempDir(), "populations.svg")
	require.NoError(Te, Populations(sum, "populations", name))
	info, err := os.Stat(name)
	require.NoError(Te, err)
	assert.NotZero(Te, info.Size())
	assert.Error(Te, Populations(ensemble.NewSummary("run", "empty", states, 20), "empty", name))
}
