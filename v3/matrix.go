/*
 * matrix.go, part of goNAMD.
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
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const appzero float64 = 0.000000000001 //used to correct floating point
//errors. Everything equal or less than this is considered zero.

//Matrix is a set of vectors in 3D space. Within the package it is understood that a
//"vector" is a row vector, i.e. the cartesian coordinates (or velocity, or force) of one atom.
type Matrix struct {
	*mat.Dense
}

//Dense2Matrix wraps a Nx3 gonum Dense. The data is not copied.
func Dense2Matrix(A *mat.Dense) *Matrix {
	if _, c := A.Dims(); c != 3 {
		panic(ErrNotXx3Matrix)
	}
	return &Matrix{A}
}

//NewMatrix generates and returns a Matrix with 3 columns from data.
//data is used directly, not copied.
func NewMatrix(data []float64) (*Matrix, error) {
	const cols int = 3
	l := len(data)
	rows := l / cols
	if l%cols != 0 || l == 0 {
		return nil, Error{fmt.Sprintf("Input slice length %d not divisible by %d or empty", l, cols), []string{"NewMatrix"}, true}
	}
	return &Matrix{mat.NewDense(rows, cols, data)}, nil
}

//Zeros returns a zero-filled Matrix with vecs vectors and 3 in the other dimension.
func Zeros(vecs int) *Matrix {
	const cols int = 3
	if vecs <= 0 {
		panic(ErrShape)
	}
	f := make([]float64, cols*vecs)
	return &Matrix{mat.NewDense(vecs, cols, f)}
}

//NVecs returns the number of vecs in F.
func (F *Matrix) NVecs() int {
	r, c := F.Dims()
	if c != 3 {
		panic(ErrNotXx3Matrix)
	}
	return r
}

//VecView returns a view of the given vector of the matrix.
//Changes in the view are reflected in F and vice-versa.
func (F *Matrix) VecView(i int) *Matrix {
	r := F.Dense.Slice(i, i+1, 0, 3).(*mat.Dense)
	return &Matrix{r}
}

//Clone returns a deep copy of F.
func (F *Matrix) Clone() *Matrix {
	return &Matrix{mat.DenseCopyOf(F.Dense)}
}

//Flat returns a copy of the elements of F, in row-major order.
func (F *Matrix) Flat() []float64 {
	r := F.NVecs()
	ret := make([]float64, 0, 3*r)
	for i := 0; i < r; i++ {
		ret = append(ret, F.RawRowView(i)...)
	}
	return ret
}

//SameShape returns true if F and A have the same number of vectors.
func (F *Matrix) SameShape(A *Matrix) bool {
	return A != nil && F.NVecs() == A.NVecs()
}

//Dot returns the sum of the element-wise product of F and B, as if both
//were flattened into 3N vectors.
func (F *Matrix) Dot(B *Matrix) float64 {
	if !F.SameShape(B) {
		panic(ErrShape)
	}
	var ret float64
	for i := 0; i < F.NVecs(); i++ {
		ret += floats.Dot(F.RawRowView(i), B.RawRowView(i))
	}
	return ret
}

//Norm returns the norm of the matrix, as given by gonum's mat.Norm.
//0 is taken to mean the 2-norm (the Frobenius norm for a Matrix).
func (F *Matrix) Norm(n float64) float64 {
	if n == 0 {
		n = 2
	}
	return mat.Norm(F.Dense, n)
}

//AddVec adds the vector vec to each vector of the matrix A, putting the
//result on the receiver.
func (F *Matrix) AddVec(A, vec *Matrix) {
	ar, ac := A.Dims()
	rr, rc := vec.Dims()
	fr, fc := F.Dims()
	if ac != rc || rr != 1 || ac != fc || ar != fr {
		panic(ErrShape)
	}
	v := vec.RawRowView(0)
	for i := 0; i < ar; i++ {
		floats.AddTo(F.RawRowView(i), A.RawRowView(i), v)
	}
}

//SubVec subtracts the vector vec from each vector of the matrix A, putting
//the result on the receiver.
func (F *Matrix) SubVec(A, vec *Matrix) {
	ar, ac := A.Dims()
	rr, rc := vec.Dims()
	fr, fc := F.Dims()
	if ac != rc || rr != 1 || ac != fc || ar != fr {
		panic(ErrShape)
	}
	v := vec.RawRowView(0)
	for i := 0; i < ar; i++ {
		floats.SubTo(F.RawRowView(i), A.RawRowView(i), v)
	}
}

//AddScaled puts A+alpha*B in the receiver.
func (F *Matrix) AddScaled(A *Matrix, alpha float64, B *Matrix) {
	if !F.SameShape(A) || !F.SameShape(B) {
		panic(ErrShape)
	}
	for i := 0; i < F.NVecs(); i++ {
		dst := F.RawRowView(i)
		if F != A {
			copy(dst, A.RawRowView(i))
		}
		floats.AddScaled(dst, alpha, B.RawRowView(i))
	}
}

//ScaleByVecs scales each vector i of A by factors[i], putting the result in the receiver.
//It is the usual way of dividing forces by masses, or weighting velocities.
func (F *Matrix) ScaleByVecs(A *Matrix, factors []float64) {
	if !F.SameShape(A) || len(factors) != A.NVecs() {
		panic(ErrShape)
	}
	for i, v := range factors {
		floats.ScaleTo(F.RawRowView(i), v, A.RawRowView(i))
	}
}

//Unit puts in the receiver the matrix A scaled to unit (Frobenius) norm.
//It panics if A is zero.
func (F *Matrix) Unit(A *Matrix) {
	norm := A.Norm(0)
	if norm <= appzero {
		panic(ErrZeroNorm)
	}
	F.Scale(1.0/norm, A.Dense)
}

//IsFinite returns false if any element of F is NaN or infinite.
func (F *Matrix) IsFinite() bool {
	for i := 0; i < F.NVecs(); i++ {
		for _, v := range F.RawRowView(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

//Returns a neat string representation of a Matrix
func (F *Matrix) String() string {
	r := F.NVecs()
	v := make([]string, 0, r)
	for i := 0; i < r; i++ {
		row := F.RawRowView(i)
		v = append(v, fmt.Sprintf("%9.4f %9.4f %9.4f", row[0], row[1], row[2]))
	}
	return "\n[" + strings.Join(v, "\n ") + " ]"
}

//KronekerDelta is a naive implementation of the kroneker delta function.
func KronekerDelta(a, b, epsilon float64) float64 {
	if epsilon < 0 {
		epsilon = appzero
	}
	if math.Abs(a-b) <= epsilon {
		return 1
	}
	return 0
}

//Errors

//Error is the error type for the package. It fullfills the namd.Error interface.
type Error struct {
	message  string
	deco     []string
	critical bool
}

//Error returns a string with an error message.
func (err Error) Error() string {
	return fmt.Sprintf("goNAMD/v3: %s", err.message)
}

//Decorate will add the dec string to the decoration slice of strings of the error,
//and return the resulting slice.
func (err Error) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

//Critical return whether the error is critical or it can be ignored
func (err Error) Critical() bool { return err.critical }

//PanicMsg is a message used for panics, even though it does satisfy the error interface.
//for errors use Error.
type PanicMsg string

func (v PanicMsg) Error() string { return string(v) }

const (
	ErrNotXx3Matrix = PanicMsg("goNAMD/v3: A v3.Matrix should have 3 columns")
	ErrShape        = PanicMsg("goNAMD/v3: Dimension mismatch")
	ErrZeroNorm     = PanicMsg("goNAMD/v3: Can't normalize a zero matrix")
)
