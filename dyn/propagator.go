/*
 * propagator.go, part of goNAMD.
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
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/google/uuid"
	"github.com/rmera/namd"
	"github.com/rmera/namd/hop"
	"github.com/rmera/namd/oracle"
	"github.com/rmera/namd/v3"
	"gonum.org/v1/gonum/floats"
)

//Phase of a Propagator.
type Phase int

const (
	Initializing Phase = iota
	Stepping
	Terminated
)

func (P Phase) String() string {
	switch P {
	case Initializing:
		return "INITIALIZING"
	case Stepping:
		return "STEPPING"
	case Terminated:
		return "TERMINATED"
	}
	return fmt.Sprintf("Phase(%d)", int(P))
}

//Reason a trajectory was terminated.
type Reason int

const (
	Running Reason = iota //not terminated
	MaxSteps
	OracleFailed
	IntegrationFailed
	HopFailed
	LeftDomain
	EnergyDrift
	Cancelled
)

var reasonNames = map[Reason]string{
	Running:           "running",
	MaxSteps:          "max_steps",
	OracleFailed:      "oracle_failure",
	IntegrationFailed: "integration_failure",
	HopFailed:         "hop_failure",
	LeftDomain:        "left_domain",
	EnergyDrift:       "energy_drift",
	Cancelled:         "cancelled",
}

func (R Reason) String() string {
	if s, ok := reasonNames[R]; ok {
		return s
	}
	return fmt.Sprintf("Reason(%d)", int(R))
}

//ParseReason is the inverse of Reason.String.
func ParseReason(s string) (Reason, error) {
	for k, v := range reasonNames {
		if v == s {
			return k, nil
		}
	}
	return Running, fmt.Errorf("unknown termination reason %q", s)
}

//Completed is true if the trajectory ran as long as it was supposed to.
func (R Reason) Completed() bool { return R == MaxSteps }

//Status is the state of a Propagator. Err is set when the trajectory ended on a failure.
type Status struct {
	Phase     Phase
	Reason    Reason
	Iteration int
	Err       error
}

//Initial conditions for a trajectory. Velo can be nil (the nuclei start at rest). If Energies and Forces
//are nil, the oracle is called on Coords. Otherwise they must be complete and indexed by namd.State.
type Initial struct {
	Coords   *v3.Matrix
	Velo     *v3.Matrix
	State    namd.State
	Energies []float64
	Forces   []*v3.Matrix
}

//Result of a trajectory. History has every completed time point, so Final is the snapshot of its last frame,
//even if the trajectory failed.
type Result struct {
	ID         string
	History    *History
	Events     []Event
	Status     Status
	Final      *Snapshot
	FinalState namd.State
}

//Propagator runs one trajectory. It must not be used from more than one goroutine at a time.
type Propagator struct {
	id       string
	cfg      Config
	sys      *namd.System
	masses   []float64
	o        oracle.Oracle
	init     *Initial
	window   *Window
	history  *History
	events   []Event
	decider  *hop.Decider
	status   Status
	centroid []float64
	e0       float64
}

//NewPropagator returns a Propagator for the system sys on the oracle o, starting from init.
//cfg is copied. Errors are of kind InvalidConfiguration or ShapeMismatch.
func NewPropagator(cfg *Config, sys *namd.System, o oracle.Oracle, init *Initial) (*Propagator, error) {
	if cfg == nil || sys == nil || o == nil || init == nil {
		return nil, namd.NewError(namd.ErrInvalidConfiguration, "nil configuration, system, oracle or initial conditions", "NewPropagator")
	}
	if err := cfg.Validate(); err != nil {
		return nil, namd.Decorate(err, namd.ErrInvalidConfiguration, "NewPropagator")
	}
	n := sys.Len()
	states := sys.States()
	if init.Coords == nil || init.Coords.NVecs() != n {
		return nil, namd.Errorf(namd.ErrShapeMismatch, "NewPropagator", "initial coordinates don't match a system of %d atoms", n)
	}
	if init.Velo != nil && init.Velo.NVecs() != n {
		return nil, namd.Errorf(namd.ErrShapeMismatch, "NewPropagator", "initial velocities don't match a system of %d atoms", n)
	}
	if !states.Valid(init.State) {
		return nil, namd.Errorf(namd.ErrInvalidConfiguration, "NewPropagator", "initial state %d not in a set of %d states", init.State, states.Len())
	}
	if init.Energies != nil || init.Forces != nil {
		if err := (&oracle.Result{Energies: init.Energies, Forces: init.Forces}).Check(n, states.Len()); err != nil || len(init.Energies) != states.Len() {
			return nil, namd.Errorf(namd.ErrShapeMismatch, "NewPropagator", "initial energies and forces don't match %d states of %d atoms", states.Len(), n)
		}
	}
	P := &Propagator{
		id:      uuid.NewString(),
		cfg:     *cfg,
		sys:     sys,
		masses:  sys.Masses(),
		o:       o,
		init:    init,
		window:  NewWindow(n, states.Len()),
		history: NewHistory(cfg.MaxSteps),
	}
	P.decider = hop.NewDecider(cfg.Method, cfg.Frustrated, cfg.Seed)
	P.decider.Threshold = cfg.HopThreshold
	return P, nil
}

//ID returns the identifier of the trajectory, a random UUID unless SetID was used.
func (P *Propagator) ID() string { return P.id }

//SetID sets the identifier of the trajectory.
func (P *Propagator) SetID(id string) { P.id = id }

//SetDecider replaces the hopping decider built from the configuration.
func (P *Propagator) SetDecider(d *hop.Decider) { P.decider = d }

//Status returns the current status.
func (P *Propagator) Status() Status { return P.status }

//Window returns the trajectory window. It must not be modified.
func (P *Propagator) Window() *Window { return P.window }

//History returns the history so far. It must not be modified.
func (P *Propagator) History() *History { return P.history }

//Step advances the trajectory one iteration, and returns the resulting status. The first call
//initializes the trajectory, without integrating. After termination, Step does nothing.
func (P *Propagator) Step(ctx context.Context) Status {
	switch P.status.Phase {
	case Initializing:
		P.initialize(ctx)
	case Stepping:
		P.step(ctx)
	}
	return P.status
}

//Run steps the trajectory until it terminates, and returns its result.
func (P *Propagator) Run(ctx context.Context) *Result {
	for P.status.Phase != Terminated {
		P.Step(ctx)
	}
	return P.Result()
}

//Result returns the result of the trajectory so far.
func (P *Propagator) Result() *Result {
	R := &Result{ID: P.id, History: P.history, Events: append([]Event(nil), P.events...), Status: P.status, FinalState: P.window.State}
	if P.window.Filled() > 0 {
		R.Final = P.lastComplete()
	}
	return R
}

//lastComplete returns the last recorded snapshot.
func (P *Propagator) lastComplete() *Snapshot {
	if P.window.real[P.window.head] {
		return P.window.Current().Clone()
	}
	return P.window.Previous().Clone()
}

func (P *Propagator) terminate(reason Reason, err error) {
	P.status.Phase = Terminated
	P.status.Reason = reason
	P.status.Err = err
	if err != nil {
		log.Printf("goNAMD: trajectory %s terminated at iteration %d (%s): %s", P.id, P.status.Iteration, reason, err)
	}
}

//oracleTermination tells a cancelled context from a real oracle failure.
func oracleTermination(ctx context.Context, err error) Reason {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return Cancelled
	}
	return OracleFailed
}

func (P *Propagator) initialize(ctx context.Context) {
	n := P.sys.Len()
	snap := &Snapshot{Coords: P.init.Coords.Clone()}
	if P.init.Velo != nil {
		snap.Velo = P.init.Velo.Clone()
	} else {
		snap.Velo = v3.Zeros(n)
	}
	if P.init.Energies != nil {
		snap.Energies = append([]float64(nil), P.init.Energies...)
		snap.Forces = make([]*v3.Matrix, len(P.init.Forces))
		for i, f := range P.init.Forces {
			snap.Forces[i] = f.Clone()
		}
	} else {
		res, err := oracle.Evaluate(ctx, P.o, P.sys, snap.Coords)
		if err != nil {
			P.terminate(oracleTermination(ctx, err), namd.Decorate(err, namd.ErrOracleFailure, "initialize"))
			return
		}
		snap.Energies, snap.Forces = res.Energies, res.Forces
	}
	if P.cfg.InitKinetic > 0 {
		if err := namd.ScaleKineticEnergy(P.masses, snap.Velo, P.cfg.InitKinetic); err != nil {
			P.terminate(IntegrationFailed, namd.Decorate(err, namd.ErrInvalidConfiguration, "initialize"))
			return
		}
	}
	ke, err := namd.KineticEnergy(P.masses, snap.Velo)
	if err != nil {
		P.terminate(IntegrationFailed, namd.Decorate(err, namd.ErrShapeMismatch, "initialize"))
		return
	}
	P.window.Record(snap)
	P.window.State = P.init.State
	P.window.Kinetic = ke
	P.e0 = snap.Energies[P.init.State] + ke
	P.centroid = centroid(snap.Coords)
	P.status = Status{Phase: Stepping, Reason: Running, Iteration: 0}
}

//save adds the current window state to the history.
func (P *Propagator) save(kind hop.Kind) {
	W := P.window
	cur := W.Current()
	P.history.Add(Frame{
		Iteration: P.status.Iteration,
		State:     W.State,
		Coords:    cur.Coords,
		Velo:      cur.Velo,
		Energy:    cur.Energies[W.State],
		Forces:    cur.Forces[W.State],
		Energies:  cur.Energies,
		Kinetic:   W.Kinetic,
		Hop:       kind,
	})
}

func (P *Propagator) lastHop() hop.Kind {
	if len(P.events) > 0 && P.events[len(P.events)-1].Iteration == P.status.Iteration {
		return P.events[len(P.events)-1].Kind
	}
	return hop.NoHop
}

func (P *Propagator) step(ctx context.Context) {
	W := P.window
	P.save(P.lastHop())
	if P.status.Iteration+1 >= P.cfg.MaxSteps {
		P.terminate(MaxSteps, nil)
		return
	}
	if err := ctx.Err(); err != nil {
		P.terminate(Cancelled, namd.Decorate(err, namd.ErrTerminated, "step"))
		return
	}
	prev := W.Current()
	s := W.State
	W.Shift()
	coords, err := namd.AdvancePosition(prev.Coords, prev.Velo, prev.Forces[s], P.masses, P.cfg.DeltaT)
	if err != nil {
		P.terminate(IntegrationFailed, namd.Decorate(err, namd.ErrShapeMismatch, "step"))
		return
	}
	res, err := oracle.Evaluate(ctx, P.o, P.sys, coords)
	if err != nil {
		P.terminate(oracleTermination(ctx, err), namd.Decorate(err, namd.ErrOracleFailure, "step"))
		return
	}
	velo, err := namd.AdvanceVelocity(prev.Velo, res.Forces[s], prev.Forces[s], P.masses, P.cfg.DeltaT)
	if err != nil {
		P.terminate(IntegrationFailed, namd.Decorate(err, namd.ErrShapeMismatch, "step"))
		return
	}
	ke, err := namd.KineticEnergy(P.masses, velo)
	if err != nil {
		P.terminate(IntegrationFailed, namd.Decorate(err, namd.ErrShapeMismatch, "step"))
		return
	}
	if !coords.IsFinite() || !velo.IsFinite() || math.IsNaN(ke) || math.IsInf(ke, 0) {
		P.terminate(IntegrationFailed, namd.Errorf(namd.ErrTerminated, "step", "non-finite coordinates or velocities at iteration %d", P.status.Iteration+1))
		return
	}
	snap := &Snapshot{Coords: coords, Velo: velo, Energies: res.Energies, Forces: res.Forces}
	W.Record(snap)
	W.Kinetic = ke
	P.status.Iteration++
	if W.Filled() == WindowSize {
		if err := P.surfaceHop(); err != nil {
			P.save(hop.NoHop)
			P.terminate(HopFailed, err)
			return
		}
	}
	if reason, err := P.checkLimits(); reason != Running {
		P.save(P.lastHop())
		P.terminate(reason, err)
	}
}

//surfaceHop runs the hopping decision on the full window, and applies its outcome.
func (P *Propagator) surfaceHop() error {
	W := P.window
	in := &hop.Input{
		Points:       W.Points(),
		Velo:         W.Current().Velo,
		Masses:       P.masses,
		Kinetic:      W.Kinetic,
		State:        W.State,
		States:       P.sys.States(),
		ICThreshold:  P.cfg.ICEThresh,
		ISCThreshold: P.cfg.ISCEThresh,
	}
	out, err := P.decider.Decide(in)
	if err != nil {
		return namd.Decorate(err, namd.ErrTerminated, "surfaceHop")
	}
	if out.Kind == hop.NoHop {
		return nil
	}
	P.events = append(P.events, Event{Iteration: P.status.Iteration, Kind: out.Kind, From: out.From, To: out.To, Probability: probability(out)})
	W.Current().Velo = out.Velocity
	W.Kinetic = out.Kinetic
	W.State = out.To
	return nil
}

//probability returns the probability of the transition that was attempted.
func probability(out *hop.Outcome) float64 {
	if out.Kind == hop.Hop {
		return out.Probabilities[out.To]
	}
	var best float64
	for _, p := range out.Probabilities {
		best = math.Max(best, p)
	}
	return best
}

func (P *Propagator) checkLimits() (Reason, error) {
	W := P.window
	cur := W.Current()
	if P.cfg.MaxEnergyDrift > 0 {
		drift := math.Abs(cur.Energies[W.State] + W.Kinetic - P.e0)
		if drift > P.cfg.MaxEnergyDrift {
			return EnergyDrift, namd.Errorf(namd.ErrTerminated, "checkLimits", "total energy drifted %g Hartree", drift)
		}
	}
	if P.cfg.DomainRadius > 0 {
		d := make([]float64, 3)
		for i := 0; i < cur.Coords.NVecs(); i++ {
			floats.SubTo(d, cur.Coords.RawRowView(i), P.centroid)
			if r := floats.Norm(d, 2); r > P.cfg.DomainRadius {
				return LeftDomain, namd.Errorf(namd.ErrTerminated, "checkLimits", "atom %d is %g Bohr away from the initial centroid", i, r)
			}
		}
	}
	return Running, nil
}

func centroid(coords *v3.Matrix) []float64 {
	ret := make([]float64, 3)
	n := coords.NVecs()
	for i := 0; i < n; i++ {
		floats.Add(ret, coords.RawRowView(i))
	}
	floats.Scale(1/float64(n), ret)
	return ret
}
