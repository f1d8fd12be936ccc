/*
 * conversion.go, part of goNAMD.
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

//This provides useful conversion factors and other constants.
//goNAMD works in atomic units internally.

//Conversions
const (
	H2Kcal  = 627.509 //Hartree 2 Kcal/mol
	Kcal2H  = 1 / 627.509
	H2EV    = 27.211386
	EV2H    = 1 / 27.211386
	A2Bohr  = 1.889725989
	Bohr2A  = 1 / 1.889725989
	FS2AU   = 41.341374575751 //femtoseconds to atomic units of time
	AU2FS   = 1 / 41.341374575751
	AMU2AU  = 1822.888486 //unified atomic mass units to electron masses
	AU2AMU  = 1 / 1822.888486
	KCal2KJ = 4.184
)

//Others
const (
	KB = 3.166811563e-6 //Boltzmann constant in Hartree/K
)
