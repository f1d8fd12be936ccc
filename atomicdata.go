/*
 * atomicdata.go, part of goNAMD.
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
	"strings"
)

//A map for assigning mass to elements, in amu.
//Note that just common "bio-elements" and the usual
//photochemistry suspects are present
var symbolMass = map[string]float64{
	"H":  1.008,
	"He": 4.0026,
	"Li": 6.94,
	"B":  10.81,
	"C":  12.011,
	"N":  14.007,
	"O":  15.999,
	"F":  18.998,
	"Na": 22.99,
	"Mg": 24.305,
	"Si": 28.085,
	"P":  30.974,
	"S":  32.06,
	"Cl": 35.45,
	"K":  39.098,
	"Ca": 40.078,
	"Cr": 51.996,
	"Mn": 54.938,
	"Fe": 55.845,
	"Co": 58.933,
	"Cu": 63.546,
	"Zn": 65.38,
	"Se": 78.971,
	"Br": 79.904,
	"I":  126.90,
}

//normalizeSymbol turns "CL", "cl" or "Cl" into "Cl".
func normalizeSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if len(symbol) == 0 {
		return symbol
	}
	return strings.ToUpper(symbol[:1]) + strings.ToLower(symbol[1:])
}

//MassOf returns the mass of the element symbol, in electron masses (atomic units).
func MassOf(symbol string) (float64, error) {
	m, ok := symbolMass[normalizeSymbol(symbol)]
	if !ok {
		return 0, Errorf(ErrInvalidConfiguration, "MassOf", "no mass for element %q", symbol)
	}
	return m * AMU2AU, nil
}

//MassesOf returns the masses, in electron masses, for all the symbols given.
func MassesOf(symbols []string) ([]float64, error) {
	ret := make([]float64, len(symbols))
	for i, s := range symbols {
		m, err := MassOf(s)
		if err != nil {
			return nil, Decorate(err, ErrInvalidConfiguration, "MassesOf")
		}
		ret[i] = m
	}
	return ret, nil
}
