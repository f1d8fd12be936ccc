/*
 * config.go, part of goNAMD.
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

package dyn

import (
	"math"

	"github.com/rmera/namd"
	"github.com/rmera/namd/hop"
)

//Config contains the options for propagating one trajectory. All energies are in Hartree,
//times in atomic units and distances in Bohr.
type Config struct {
	ICEThresh      float64    //largest gap for which internal conversion is evaluated
	ISCEThresh     float64    //largest gap for which intersystem crossing is evaluated
	DeltaT         float64    //time step
	MaxSteps       int        //number of time points, including the initial one
	Method         hop.Method //how the target state is selected
	Frustrated     hop.Policy //what to do with the velocities after a frustrated hop
	HopThreshold   float64    //minimum probability for deterministic hops. 0 means hop.DefaultThreshold
	Seed           uint64     //seed for the stochastic hopping decisions
	InitKinetic    float64    //if positive, the initial velocities are scaled to this kinetic energy
	DomainRadius   float64    //if positive, the trajectory stops when an atom gets farther than this from the initial centroid
	MaxEnergyDrift float64    //if positive, the trajectory stops when the total energy drifts more than this
}

//DefaultConfig returns a Config with sensible values for organic molecules: 0.5 fs steps,
//1 ps of simulation, 0.5 eV gap window for internal conversion and 0.1 eV for intersystem crossing.
func DefaultConfig() *Config {
	return &Config{
		ICEThresh:  0.5 * namd.EV2H,
		ISCEThresh: 0.1 * namd.EV2H,
		DeltaT:     0.5 * namd.FS2AU,
		MaxSteps:   2000,
		Method:     hop.Stochastic,
		Frustrated: hop.Keep,
		Seed:       1,
	}
}

//Validate returns an error of kind InvalidConfiguration if C can't be used.
func (C *Config) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"ic_e_thresh", C.ICEThresh},
		{"isc_e_thresh", C.ISCEThresh},
		{"delta_t", C.DeltaT},
	}
	for _, p := range positive {
		if !(p.v > 0) || math.IsInf(p.v, 0) {
			return namd.Errorf(namd.ErrInvalidConfiguration, "Validate", "%s must be positive and finite, not %g", p.name, p.v)
		}
	}
	if C.MaxSteps <= 0 {
		return namd.Errorf(namd.ErrInvalidConfiguration, "Validate", "max_steps must be positive, not %d", C.MaxSteps)
	}
	if C.InitKinetic < 0 || C.DomainRadius < 0 || C.MaxEnergyDrift < 0 || C.HopThreshold < 0 || C.HopThreshold > 1 {
		return namd.NewError(namd.ErrInvalidConfiguration, "negative optional limit, or hopping threshold out of [0,1]", "Validate")
	}
	if C.Method != hop.Stochastic && C.Method != hop.Deterministic {
		return namd.Errorf(namd.ErrInvalidConfiguration, "Validate", "unknown hopping method %d", C.Method)
	}
	if C.Frustrated != hop.Keep && C.Frustrated != hop.Reflect {
		return namd.Errorf(namd.ErrInvalidConfiguration, "Validate", "unknown frustrated hop policy %d", C.Frustrated)
	}
	return nil
}

//Duration returns the simulated time, in atomic units, of a complete trajectory.
func (C *Config) Duration() float64 {
	return float64(C.MaxSteps-1) * C.DeltaT
}
