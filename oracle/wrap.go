/*
 * wrap.go, part of goNAMD.
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

package oracle

import (
	"context"
	"sync/atomic"
)

//Normalized undoes the output normalization of a trained model:
//E = e*Scale + Shift and F = f*Scale. Models are usually trained on energies
//shifted by their mean and divided by the RMS of the forces, which is what Shift and Scale are.
type Normalized struct {
	Oracle Oracle
	Shift  float64
	Scale  float64
}

//Evaluate implements Oracle.
func (N *Normalized) Evaluate(ctx context.Context, s *Structure) (*Result, error) {
	R, err := N.Oracle.Evaluate(ctx, s)
	if err != nil {
		return nil, err
	}
	R = R.Clone()
	for i := range R.Energies {
		R.Energies[i] = R.Energies[i]*N.Scale + N.Shift
		if i < len(R.Forces) && R.Forces[i] != nil {
			R.Forces[i].Scale(N.Scale, R.Forces[i].Dense)
		}
	}
	return R, nil
}

//FromGradients adapts an oracle that returns energy gradients instead of forces.
type FromGradients struct {
	Oracle Oracle
}

//Evaluate implements Oracle.
func (G *FromGradients) Evaluate(ctx context.Context, s *Structure) (*Result, error) {
	R, err := G.Oracle.Evaluate(ctx, s)
	if err != nil {
		return nil, err
	}
	R = R.Clone()
	for _, f := range R.Forces {
		if f != nil {
			f.Scale(-1, f.Dense)
		}
	}
	return R, nil
}

//Counter counts the calls to an oracle. It is safe for concurrent use.
type Counter struct {
	Oracle Oracle
	calls  atomic.Int64
}

//Evaluate implements Oracle.
func (C *Counter) Evaluate(ctx context.Context, s *Structure) (*Result, error) {
	C.calls.Add(1)
	return C.Oracle.Evaluate(ctx, s)
}

//Calls returns the number of evaluations so far.
func (C *Counter) Calls() int64 { return C.calls.Load() }
