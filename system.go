/*
 * system.go, part of goNAMD.
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
	"fmt"
	"strings"
)

//State identifies an electronic state of a System. States are numbered
//from 0 in increasing energy order within a StateSet, which also knows
//their labels, multiplicities and where the oracle puts them.
type State int

//StateSet is the closed set of electronic states a trajectory can populate.
//It is immutable after construction.
type StateSet struct {
	labels     []string
	mult       []int
	toOracle   []int
	fromOracle map[int]State
}

//NewStateSet returns a validated StateSet. mult gives the spin multiplicity of each
//state (1 for singlets, 3 for triplets...). labels can be nil, in which
//case they are derived from mult ("S0", "S1", "T1"...). oracleIndex[s] is the position of state s
//in the oracle's output, nil means the identity. Every oracle index must be used at most once.
func NewStateSet(mult []int, labels []string, oracleIndex []int) (*StateSet, error) {
	n := len(mult)
	if n == 0 {
		return nil, NewError(ErrInvalidConfiguration, "a StateSet needs at least one state", "NewStateSet")
	}
	S := &StateSet{mult: make([]int, n), toOracle: make([]int, n), fromOracle: make(map[int]State, n)}
	for i, m := range mult {
		if m <= 0 {
			return nil, Errorf(ErrInvalidConfiguration, "NewStateSet", "non-positive multiplicity %d for state %d", m, i)
		}
		S.mult[i] = m
	}
	if labels == nil {
		labels = DefaultLabels(mult)
	}
	if len(labels) != n {
		return nil, Errorf(ErrInvalidConfiguration, "NewStateSet", "%d labels for %d states", len(labels), n)
	}
	S.labels = append([]string(nil), labels...)
	for i := range S.toOracle {
		o := i
		if oracleIndex != nil {
			if len(oracleIndex) != n {
				return nil, Errorf(ErrInvalidConfiguration, "NewStateSet", "%d oracle indexes for %d states", len(oracleIndex), n)
			}
			o = oracleIndex[i]
		}
		if o < 0 {
			return nil, Errorf(ErrInvalidConfiguration, "NewStateSet", "negative oracle index %d", o)
		}
		if _, ok := S.fromOracle[o]; ok {
			return nil, Errorf(ErrInvalidConfiguration, "NewStateSet", "oracle index %d used twice", o)
		}
		S.toOracle[i] = o
		S.fromOracle[o] = State(i)
	}
	return S, nil
}

//Singlets returns a StateSet of n singlets, S0 to S(n-1), in oracle order.
func Singlets(n int) (*StateSet, error) {
	m := make([]int, n)
	for i := range m {
		m[i] = 1
	}
	return NewStateSet(m, nil, nil)
}

//DefaultLabels names states after their multiplicity. Singlets start from S0,
//other multiplicities from 1 (T1, T2, D1...).
func DefaultLabels(mult []int) []string {
	letters := map[int]string{1: "S", 2: "D", 3: "T", 4: "Q"}
	count := make(map[int]int)
	ret := make([]string, len(mult))
	for i, m := range mult {
		l, ok := letters[m]
		if !ok {
			l = fmt.Sprintf("M%d_", m)
		}
		c := count[m]
		if m != 1 {
			c++
		}
		ret[i] = fmt.Sprintf("%s%d", l, c)
		count[m]++
	}
	return ret
}

//Len returns the number of states.
func (S *StateSet) Len() int { return len(S.labels) }

//Valid returns true if s belongs to the set.
func (S *StateSet) Valid(s State) bool { return s >= 0 && int(s) < len(S.labels) }

//Label returns the label of the state s.
func (S *StateSet) Label(s State) string {
	if !S.Valid(s) {
		return fmt.Sprintf("?%d", s)
	}
	return S.labels[s]
}

//Labels returns a copy of the labels of all states.
func (S *StateSet) Labels() []string { return append([]string(nil), S.labels...) }

//Multiplicity returns the spin multiplicity of the state s.
func (S *StateSet) Multiplicity(s State) int { return S.mult[s] }

//SameMultiplicity is true when a transition between a and b is an internal conversion,
//false when it is an intersystem crossing.
func (S *StateSet) SameMultiplicity(a, b State) bool { return S.mult[a] == S.mult[b] }

//OracleIndex returns the position of state s in the oracle's energies and forces.
func (S *StateSet) OracleIndex(s State) int { return S.toOracle[s] }

//FromOracle returns the state which the oracle reports in position i.
func (S *StateSet) FromOracle(i int) (State, error) {
	s, ok := S.fromOracle[i]
	if !ok {
		return -1, Errorf(ErrShapeMismatch, "FromOracle", "oracle index %d maps to no state", i)
	}
	return s, nil
}

//OracleWidth is the minimum number of states the oracle has to return.
func (S *StateSet) OracleWidth() int {
	max := 0
	for _, v := range S.toOracle {
		if v > max {
			max = v
		}
	}
	return max + 1
}

//Parse returns the state with the given label (case insensitive).
func (S *StateSet) Parse(label string) (State, error) {
	for i, v := range S.labels {
		if strings.EqualFold(v, strings.TrimSpace(label)) {
			return State(i), nil
		}
	}
	return -1, Errorf(ErrInvalidConfiguration, "Parse", "unknown state %q", label)
}

//AtomTypeKey maps an atom-type label (usually an element symbol) to the
//one-hot vector the oracle expects for it.
type AtomTypeKey map[string][]float64

//Get returns the vector for label. If there is no exact match, labels are compared
//ignoring case.
func (K AtomTypeKey) Get(label string) ([]float64, bool) {
	if v, ok := K[label]; ok {
		return v, true
	}
	for k, v := range K {
		if strings.EqualFold(k, label) {
			return v, true
		}
	}
	return nil, false
}

//System is the invariant part of a trajectory: atoms, masses, their
//one-hot encodings and the electronic states. It is never mutated after construction,
//and all accessors return copies, so it can be shared by concurrent trajectories.
type System struct {
	symbols []string
	masses  []float64
	onehot  [][]float64
	states  *StateSet
}

//NewSystem builds a System. If masses is nil, they are taken from the element
//symbols. key can be nil, if the oracle doesn't need one-hot encodings.
//Masses are in electron masses and must be positive.
func NewSystem(symbols []string, masses []float64, key AtomTypeKey, states *StateSet) (*System, error) {
	var err error
	if len(symbols) == 0 {
		return nil, NewError(ErrInvalidConfiguration, "no atoms", "NewSystem")
	}
	if states == nil {
		return nil, NewError(ErrInvalidConfiguration, "no electronic states", "NewSystem")
	}
	if masses == nil {
		masses, err = MassesOf(symbols)
		if err != nil {
			return nil, Decorate(err, ErrInvalidConfiguration, "NewSystem")
		}
	}
	if len(masses) != len(symbols) {
		return nil, Errorf(ErrShapeMismatch, "NewSystem", "%d masses for %d atoms", len(masses), len(symbols))
	}
	S := &System{symbols: append([]string(nil), symbols...), masses: append([]float64(nil), masses...), states: states}
	for i, m := range S.masses {
		if !(m > 0) {
			return nil, Errorf(ErrInvalidConfiguration, "NewSystem", "non-positive mass %g for atom %d", m, i)
		}
	}
	if key != nil {
		S.onehot = make([][]float64, len(symbols))
		width := -1
		for i, s := range symbols {
			v, ok := key.Get(s)
			if !ok {
				return nil, Errorf(ErrInvalidConfiguration, "NewSystem", "atom type %q not in the one-hot key", s)
			}
			if width >= 0 && len(v) != width {
				return nil, Errorf(ErrShapeMismatch, "NewSystem", "one-hot vector for %q has length %d, expected %d", s, len(v), width)
			}
			width = len(v)
			S.onehot[i] = append([]float64(nil), v...)
		}
	}
	return S, nil
}

//Len returns the number of atoms in the system.
func (S *System) Len() int { return len(S.symbols) }

//Symbol returns the symbol of the ith atom.
func (S *System) Symbol(i int) string { return S.symbols[i] }

//Symbols returns a copy of the atom symbols.
func (S *System) Symbols() []string { return append([]string(nil), S.symbols...) }

//Mass returns the mass of the ith atom.
func (S *System) Mass(i int) float64 { return S.masses[i] }

//Masses returns a copy of the atomic masses.
func (S *System) Masses() []float64 { return append([]float64(nil), S.masses...) }

//OneHot returns a copy of the one-hot encodings, or nil if the System has none.
func (S *System) OneHot() [][]float64 {
	if S.onehot == nil {
		return nil
	}
	ret := make([][]float64, len(S.onehot))
	for i, v := range S.onehot {
		ret[i] = append([]float64(nil), v...)
	}
	return ret
}

//States returns the electronic states of the system.
func (S *System) States() *StateSet { return S.states }

//TypeOf returns the atom type whose one-hot vector is onehot.
func (K AtomTypeKey) TypeOf(onehot []float64) (string, error) {
	for k, v := range K {
		if len(v) != len(onehot) {
			continue
		}
		same := true
		for i := range v {
			if v[i] != onehot[i] {
				same = false
				break
			}
		}
		if same {
			return k, nil
		}
	}
	return "", NewError(ErrInvalidConfiguration, "one-hot vector not in key", "TypeOf")
}
