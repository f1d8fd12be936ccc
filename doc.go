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
/***Dedicated to the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche***/

/*Package namd is the main package of the goNAMD library. It propagates classical nuclei on
several electronic potential energy surfaces, given by an energy/force oracle (usually a
trained machine-learning model), and lets trajectories switch surfaces with Zhu-Nakamura
surface hopping.

	**goNAMD Capabilities**

    Velocity-Verlet integration of the nuclei on the populated surface.

    Zhu-Nakamura internal conversion and intersystem crossing probabilities, without
	nonadiabatic couplings, from the energies and forces of three consecutive steps.

    Stochastic and deterministic hopping, with explicit handling of frustrated hops.

    Oracles: harmonic and avoided-crossing model surfaces, external programs, and remote
	models served over gRPC.

    Maxwell-Boltzmann and Wigner initial conditions.

    Concurrent ensembles of independent trajectories.

    Trajectory files (compressed ntf format and multi-XYZ), a sqlite result store
	and energy/population plots.

The root package holds the atomic system, the electronic states and the integrator.
The propagation machinery lives in the dyn package, the Zhu-Nakamura estimator in zn
and the hopping decision in hop.

goNAMD works in atomic units: Bohr, Hartree, electron masses and atomic units of time.
See conversion.go for the relevant factors.
*/
package namd
