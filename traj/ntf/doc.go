/*
 * doc.go, part of goNAMD.
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

/*
Package ntf reads and writes NTF (NAMD trajectory format) files.

An NTF file is plain text compressed with zstd (or gzip, if the file name ends in "z").
It starts with optional key=value header lines, followed by the line

	** natoms nstates

Each frame starts with the line

	* iteration state energy kinetic outcome e_0 ... e_(nstates-1)

where energy is the potential energy of the populated state, outcome is the result of the hopping
decision at the end of the step (NO_HOP, HOP or FRUSTRATED) and the e_i are the energies of all the states.
natoms lines follow, each with the coordinates and the forces on one atom:

	x y z fx fy fz

All quantities are in atomic units. The "prec" header key sets the number of significant digits
written (default 10).
*/
package ntf
