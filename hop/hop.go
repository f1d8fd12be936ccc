/*
 * hop.go, part of goNAMD.
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

//Package hop decides, once per step, whether a trajectory switches electronic state.
package hop

import (
	"fmt"
	"math"

	"github.com/rmera/namd"
	"github.com/rmera/namd/v3"
	"github.com/rmera/namd/zn"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

//Kind is the outcome of a hopping decision.
type Kind int

const (
	NoHop      Kind = iota //state unchanged
	Hop                    //state changed, velocity rescaled to conserve energy
	Frustrated             //a hop was selected, but there was not enough kinetic energy along the coupling
)

func (K Kind) String() string {
	switch K {
	case NoHop:
		return "NO_HOP"
	case Hop:
		return "HOP"
	case Frustrated:
		return "FRUSTRATED"
	}
	return fmt.Sprintf("Kind(%d)", int(K))
}

//ParseKind reads the names given by Kind.String.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{NoHop, Hop, Frustrated} {
		if k.String() == s {
			return k, nil
		}
	}
	return NoHop, namd.Errorf(namd.ErrInvalidConfiguration, "ParseKind", "unknown hop outcome %q", s)
}

//Method selects the target state from the probabilities.
type Method int

const (
	//Stochastic draws one uniform number and walks the cumulative probabilities in state order.
	Stochastic Method = iota
	//Deterministic hops to the most probable state, if its probability reaches the threshold.
	Deterministic
)

//ParseMethod reads "stochastic" or "deterministic".
func ParseMethod(s string) (Method, error) {
	switch s {
	case "stochastic", "":
		return Stochastic, nil
	case "deterministic":
		return Deterministic, nil
	}
	return Stochastic, namd.Errorf(namd.ErrInvalidConfiguration, "ParseMethod", "unknown hopping method %q", s)
}

func (M Method) String() string {
	if M == Deterministic {
		return "deterministic"
	}
	return "stochastic"
}

//Policy says what to do with the velocities after a frustrated hop.
type Policy int

const (
	Keep    Policy = iota //velocities untouched
	Reflect               //the velocity component along the coupling is reversed
)

//ParsePolicy reads "keep" or "reflect".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "keep", "":
		return Keep, nil
	case "reflect":
		return Reflect, nil
	}
	return Keep, namd.Errorf(namd.ErrInvalidConfiguration, "ParsePolicy", "unknown frustrated hop policy %q", s)
}

func (P Policy) String() string {
	if P == Reflect {
		return "reflect"
	}
	return "keep"
}

//Source gives uniform random numbers in [0,1). *rand.Rand from golang.org/x/exp/rand is one.
type Source interface {
	Float64() float64
}

//DefaultThreshold is the minimum probability for a deterministic hop.
const DefaultThreshold = 0.5

//Decider makes hopping decisions. A Decider with a random source must
//not be shared between trajectories.
type Decider struct {
	Method     Method
	Frustrated Policy
	Threshold  float64 //for Deterministic. 0 means DefaultThreshold
	Rand       Source
}

//NewDecider returns a Decider with its own random source, seeded with seed.
func NewDecider(method Method, policy Policy, seed uint64) *Decider {
	return &Decider{Method: method, Frustrated: policy, Rand: rand.New(rand.NewSource(seed))}
}

//Input is the state of the trajectory after the oracle call of the current step.
//Points are indexed by time offset, as in zn.Input, and carry energies and forces for all states.
type Input struct {
	Points       [3]zn.Point
	Velo         *v3.Matrix
	Masses       []float64
	Kinetic      float64
	State        namd.State
	States       *namd.StateSet
	ICThreshold  float64 //gap threshold between states of the same multiplicity
	ISCThreshold float64 //gap threshold between states of different multiplicity
}

//Outcome of one decision. Velocity and Kinetic are the ones the trajectory must continue with.
//Probabilities are clamped and indexed by state (the entry for From is 0). Degenerate lists the
//states for which the estimate failed, and were thus considered unreachable this step.
type Outcome struct {
	Kind          Kind
	From, To      namd.State
	Probabilities []float64
	Velocity      *v3.Matrix
	Kinetic       float64
	NAC           *v3.Matrix
	Degenerate    []namd.State
}

//Probabilities returns the clamped hopping probabilities from in.State to every state,
//and the estimates themselves (nil for in.State and for degenerate pairs).
func Probabilities(in *Input) ([]float64, []*zn.Result, []namd.State, error) {
	n := in.States.Len()
	probs := make([]float64, n)
	res := make([]*zn.Result, n)
	var degenerate []namd.State
	for k := namd.State(0); int(k) < n; k++ {
		if k == in.State {
			continue
		}
		thr := in.ICThreshold
		if !in.States.SameMultiplicity(in.State, k) {
			thr = in.ISCThreshold
		}
		r, err := zn.Estimate(&zn.Input{Points: in.Points, Masses: in.Masses, Kinetic: in.Kinetic, From: in.State, To: k, Threshold: thr})
		if err != nil {
			if namd.IsCritical(err) {
				return nil, nil, nil, namd.Decorate(err, namd.ErrShapeMismatch, "Probabilities")
			}
			degenerate = append(degenerate, k)
			continue
		}
		probs[k] = zn.Clamp(r.Probability)
		res[k] = r
	}
	return probs, res, degenerate, nil
}

//Decide evaluates the hopping probabilities for in, selects a target, if any, and checks that the hop
//is energetically possible. The input velocities are never modified.
func (D *Decider) Decide(in *Input) (*Outcome, error) {
	if err := checkInput(in); err != nil {
		return nil, namd.Decorate(err, namd.ErrShapeMismatch, "Decide")
	}
	probs, res, degenerate, err := Probabilities(in)
	if err != nil {
		return nil, namd.Decorate(err, namd.ErrShapeMismatch, "Decide")
	}
	out := &Outcome{Kind: NoHop, From: in.State, To: in.State, Probabilities: probs, Velocity: in.Velo.Clone(), Kinetic: in.Kinetic, Degenerate: degenerate}
	target, err := D.choose(probs, in.State)
	if err != nil {
		return nil, namd.Decorate(err, namd.ErrInvalidConfiguration, "Decide")
	}
	if target == in.State {
		return out, nil
	}
	nac := res[target].NAC
	out.NAC = nac
	cur := in.Points[0].Energies
	gap := cur[target] - cur[in.State]
	velo, ok := Rescale(in.Velo, in.Masses, nac, gap)
	if ok {
		out.Kind = Hop
		out.To = target
		out.Velocity = velo
	} else {
		out.Kind = Frustrated
		if D.Frustrated == Reflect {
			out.Velocity = ReflectAlong(in.Velo, in.Masses, nac)
		}
	}
	out.Kinetic, err = namd.KineticEnergy(in.Masses, out.Velocity)
	if err != nil {
		return nil, namd.Decorate(err, namd.ErrShapeMismatch, "Decide")
	}
	return out, nil
}

//choose returns the selected target state, which is from if there is none.
func (D *Decider) choose(probs []float64, from namd.State) (namd.State, error) {
	switch D.Method {
	case Deterministic:
		thr := D.Threshold
		if thr <= 0 {
			thr = DefaultThreshold
		}
		best := from
		for k, p := range probs {
			if namd.State(k) != from && p >= thr && (best == from || p > probs[best]) {
				best = namd.State(k)
			}
		}
		return best, nil
	case Stochastic:
		if D.Rand == nil {
			return from, namd.NewError(namd.ErrInvalidConfiguration, "stochastic hopping without a random source", "choose")
		}
		total := floats.Sum(probs)
		if total == 0 {
			//the draw is kept so the random stream doesn't depend on the probabilities
			D.Rand.Float64()
			return from, nil
		}
		norm := 1.0
		if total > 1 {
			norm = total
		}
		xi := D.Rand.Float64()
		var cum float64
		for k, p := range probs {
			if namd.State(k) == from || p == 0 {
				continue
			}
			cum += p / norm
			if xi < cum {
				return namd.State(k), nil
			}
		}
		return from, nil
	}
	return from, namd.Errorf(namd.ErrInvalidConfiguration, "choose", "unknown method %d", D.Method)
}

//alongNAC returns the projection of the mass-weighted velocity on the unit
//mass-weighted coupling vector nac.
func alongNAC(velo *v3.Matrix, masses []float64, nac *v3.Matrix) float64 {
	var b float64
	for i, m := range masses {
		b += math.Sqrt(m) * floats.Dot(velo.RawRowView(i), nac.RawRowView(i))
	}
	return b
}

//kick returns velo - gamma*nac/√m.
func kick(velo *v3.Matrix, masses []float64, nac *v3.Matrix, gamma float64) *v3.Matrix {
	ret := velo.Clone()
	for i, m := range masses {
		floats.AddScaled(ret.RawRowView(i), -gamma/math.Sqrt(m), nac.RawRowView(i))
	}
	return ret
}

//Rescale returns the velocities after paying the potential energy gap (E_new-E_old) with
//the kinetic energy along the unit mass-weighted vector nac. The smallest possible change
//is used. It returns false, and nil velocities, if there is not enough kinetic energy.
func Rescale(velo *v3.Matrix, masses []float64, nac *v3.Matrix, gap float64) (*v3.Matrix, bool) {
	b := alongNAC(velo, masses, nac)
	disc := b*b - 2*gap
	if disc < 0 {
		return nil, false
	}
	root := math.Sqrt(disc)
	gamma := b - root
	if b < 0 {
		gamma = b + root
	}
	return kick(velo, masses, nac, gamma), true
}

//ReflectAlong returns the velocities with their mass-weighted component along nac reversed.
//The kinetic energy is unchanged.
func ReflectAlong(velo *v3.Matrix, masses []float64, nac *v3.Matrix) *v3.Matrix {
	return kick(velo, masses, nac, 2*alongNAC(velo, masses, nac))
}

func checkInput(in *Input) error {
	if in == nil || in.States == nil || in.Velo == nil {
		return namd.NewError(namd.ErrShapeMismatch, "incomplete input", "checkInput")
	}
	if !in.States.Valid(in.State) {
		return namd.Errorf(namd.ErrShapeMismatch, "checkInput", "state %d not in a set of %d", in.State, in.States.Len())
	}
	if in.Velo.NVecs() != len(in.Masses) {
		return namd.Errorf(namd.ErrShapeMismatch, "checkInput", "%d velocities for %d masses", in.Velo.NVecs(), len(in.Masses))
	}
	if len(in.Points[0].Energies) != in.States.Len() {
		return namd.Errorf(namd.ErrShapeMismatch, "checkInput", "%d energies for %d states", len(in.Points[0].Energies), in.States.Len())
	}
	return nil
}
