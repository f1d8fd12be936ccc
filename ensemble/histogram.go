/*
 * histogram.go, part of goNAMD.
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

package ensemble

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

//Histogram counts values in the bins delimited by Dividers. Values outside the dividers
//are omitted, but counted in Total.
type Histogram struct {
	Dividers   []float64 `yaml:"dividers"`
	Counts     []float64 `yaml:"counts"`
	Total      int       `yaml:"total"`
	Normalized bool      `yaml:"normalized"`
}

//NewHistogram returns a histogram of rawdata, which can be nil, with the given dividers.
//dividers must be sorted and have at least 2 elements.
func NewHistogram(dividers []float64, rawdata []float64) *Histogram {
	if len(dividers) < 2 || !sort.Float64sAreSorted(dividers) {
		panic("goNAMD/ensemble.NewHistogram: dividers must be sorted and have at least 2 elements")
	}
	H := &Histogram{Dividers: append([]float64(nil), dividers...), Counts: make([]float64, len(dividers)-1)}
	H.Add(rawdata...)
	return H
}

//EvenDividers returns bins+1 evenly spaced dividers from min to max.
func EvenDividers(min, max float64, bins int) []float64 {
	if bins < 1 {
		bins = 1
	}
	if max <= min {
		max = min + 1
	}
	return floats.Span(make([]float64, bins+1), min, max)
}

//Add adds the given values to the histogram.
func (H *Histogram) Add(values ...float64) {
	if len(values) == 0 {
		return
	}
	norm := H.Normalized
	if norm {
		H.UnNormalize()
	}
	data := append([]float64(nil), values...)
	sort.Float64s(data)
	//stat.Histogram panics on out-of-range values.
	last := H.Dividers[len(H.Dividers)-1]
	maxi := sort.Search(len(data), func(i int) bool { return data[i] >= last })
	mini := sort.SearchFloat64s(data, H.Dividers[0])
	if mini < maxi {
		floats.Add(H.Counts, stat.Histogram(nil, H.Dividers, data[mini:maxi], nil))
	}
	H.Total += len(values)
	if norm {
		H.Normalize()
	}
}

//Normalize divides the counts by the total number of values.
func (H *Histogram) Normalize() {
	if H.Normalized || H.Total == 0 {
		return
	}
	floats.Scale(1/float64(H.Total), H.Counts)
	H.Normalized = true
}

//UnNormalize reverts Normalize.
func (H *Histogram) UnNormalize() {
	if !H.Normalized {
		return
	}
	floats.Scale(float64(H.Total), H.Counts)
	H.Normalized = false
}

//String returns a two-line representation of the histogram.
func (H *Histogram) String() string {
	d := make([]string, 0, len(H.Counts))
	h := make([]string, 0, len(H.Counts))
	for i, v := range H.Counts {
		d = append(d, fmt.Sprintf("%9s", fmt.Sprintf("%.1f-%.1f", H.Dividers[i], H.Dividers[i+1])))
		h = append(h, fmt.Sprintf("%9.3f", v))
	}
	return strings.Join(d, " ") + "\n" + strings.Join(h, " ")
}

//FirstHopHistogram returns the normalized histogram of the times of the first hops, in fs, over bins bins
//that span the whole simulation time. nil is returned if no trajectory hopped.
func (S *Summary) FirstHopHistogram(bins int) *Histogram {
	if len(S.firstHops) == 0 {
		return nil
	}
	H := NewHistogram(EvenDividers(0, float64(len(S.Counts))*S.DeltaT, bins), S.firstHops)
	H.Normalize()
	return H
}
