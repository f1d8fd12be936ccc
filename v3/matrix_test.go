/*
 * matrix_test.go, part of goNAMD.
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

package v3

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatrix(Te *testing.T) {
	A, err := NewMatrix([]float64{1, 2, 3, 4, 5, 6})
	require.NoError(Te, err)
	assert.Equal(Te, 2, A.NVecs())
	_, err = NewMatrix([]float64{1, 2, 3, 4})
	assert.Error(Te, err)
	_, err = NewMatrix(nil)
	assert.Error(Te, err)
}

func TestViewAndClone(Te *testing.T) {
	A, _ := NewMatrix([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9})
	B := A.Clone()
	View := A.VecView(1)
	View.Set(0, 0, 100)
	assert.Equal(Te, 100.0, A.At(1, 0))
	assert.Equal(Te, 4.0, B.At(1, 0), "clone must not share data")
	assert.Equal(Te, []float64{1, 2, 3, 100, 5, 6, 7, 8, 9}, A.Flat())
}

func TestDotNorm(Te *testing.T) {
	A, _ := NewMatrix([]float64{1, 0, 0, 0, 2, 0})
	B, _ := NewMatrix([]float64{3, 1, 1, 1, 4, 1})
	assert.InDelta(Te, 11.0, A.Dot(B), 1e-12)
	assert.InDelta(Te, math.Sqrt(5), A.Norm(0), 1e-12)
	U := Zeros(2)
	U.Unit(A)
	assert.InDelta(Te, 1.0, U.Norm(0), 1e-12)
	assert.Panics(Te, func() { U.Unit(Zeros(2)) })
}

func TestScaledOps(Te *testing.T) {
	A, _ := NewMatrix([]float64{1, 1, 1, 2, 2, 2})
	B, _ := NewMatrix([]float64{1, 2, 3, 4, 5, 6})
	F := Zeros(2)
	F.AddScaled(A, 0.5, B)
	assert.Equal(Te, []float64{1.5, 2, 2.5, 4, 4.5, 5}, F.Flat())
	F.ScaleByVecs(B, []float64{2, 0.5})
	assert.Equal(Te, []float64{2, 4, 6, 2, 2.5, 3}, F.Flat())
	assert.Panics(Te, func() { F.ScaleByVecs(B, []float64{1}) })
	vec, _ := NewMatrix([]float64{1, 1, 1})
	F.SubVec(B, vec)
	assert.Equal(Te, []float64{0, 1, 2, 3, 4, 5}, F.Flat())
	F.AddVec(F, vec)
	assert.Equal(Te, B.Flat(), F.Flat())
}

func TestIsFinite(Te *testing.T) {
	A := Zeros(2)
	assert.True(Te, A.IsFinite())
	A.Set(1, 2, math.NaN())
	assert.False(Te, A.IsFinite())
}
