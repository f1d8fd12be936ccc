/*
 * summary.go, part of goNAMD.
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
	"sort"

	"github.com/rmera/namd"
	"github.com/rmera/namd/dyn"
	"github.com/rmera/namd/hop"
	"gonum.org/v1/gonum/stat"
)

//Entry summarizes one trajectory of an ensemble.
type Entry struct {
	Index      int     `yaml:"index"`
	ID         string  `yaml:"id,omitempty"`
	Reason     string  `yaml:"reason"`
	Steps      int     `yaml:"steps"`
	FinalState string  `yaml:"final_state,omitempty"`
	Hops       int     `yaml:"hops"`
	Frustrated int     `yaml:"frustrated"`
	FirstHop   float64 `yaml:"first_hop_fs,omitempty"` //time of the first hop, 0 if there was none
	Error      string  `yaml:"error,omitempty"`
}

//Summary collects the results of an ensemble. The zero value is not usable, use NewSummary.
type Summary struct {
	RunID        string         `yaml:"run_id"`
	Title        string         `yaml:"title"`
	States       []string       `yaml:"states"`
	DeltaT       float64        `yaml:"dt_fs"`
	Trajectories int            `yaml:"trajectories"`
	Completed    int            `yaml:"completed"`
	Failed       int            `yaml:"failed"` //trajectories that couldn't start
	Reasons      map[string]int `yaml:"reasons"`
	Hops         int            `yaml:"hops"`
	Frustrated   int            `yaml:"frustrated"`
	FirstHopMean float64        `yaml:"first_hop_mean_fs"`
	FirstHopStd  float64        `yaml:"first_hop_std_fs"`
	OutputErrors int            `yaml:"output_errors"`
	Entries      []Entry        `yaml:"entries"`
	//Counts[i][s] is the number of trajectories in state s at iteration i.
	Counts [][]int `yaml:"-"`

	firstHops []float64
}

//NewSummary returns an empty summary. dt is the time step, in atomic units.
func NewSummary(runID, title string, states *namd.StateSet, dt float64) *Summary {
	return &Summary{
		RunID:   runID,
		Title:   title,
		States:  states.Labels(),
		DeltaT:  dt * namd.AU2FS,
		Reasons: make(map[string]int),
	}
}

//Add includes the result of trajectory index in the summary.
func (S *Summary) Add(index int, res *dyn.Result) {
	S.Trajectories++
	if res.Status.Reason.Completed() {
		S.Completed++
	}
	S.Reasons[res.Status.Reason.String()]++
	e := Entry{
		Index:  index,
		ID:     res.ID,
		Reason: res.Status.Reason.String(),
	}
	if res.Status.Err != nil {
		e.Error = res.Status.Err.Error()
	}
	if res.History != nil {
		e.Steps = res.History.Len()
		if last, ok := res.History.Last(); ok && last.State >= 0 && int(last.State) < len(S.States) {
			e.FinalState = S.States[last.State]
		}
		for i, st := range res.History.States() {
			for len(S.Counts) <= i {
				S.Counts = append(S.Counts, make([]int, len(S.States)))
			}
			if st >= 0 && int(st) < len(S.States) {
				S.Counts[i][st]++
			}
		}
	}
	first := -1
	for _, ev := range res.Events {
		switch ev.Kind {
		case hop.Hop:
			e.Hops++
			if first < 0 {
				first = ev.Iteration
			}
		case hop.Frustrated:
			e.Frustrated++
		}
	}
	if first >= 0 {
		e.FirstHop = float64(first) * S.DeltaT
		S.firstHops = append(S.firstHops, e.FirstHop)
	}
	S.Hops += e.Hops
	S.Frustrated += e.Frustrated
	S.Entries = append(S.Entries, e)
	S.update()
}

//AddFailure records a trajectory that could not be started.
func (S *Summary) AddFailure(index int, err error) {
	S.Trajectories++
	S.Failed++
	S.Reasons["not_started"]++
	S.Entries = append(S.Entries, Entry{Index: index, Reason: "not_started", Error: err.Error()})
	S.update()
}

func (S *Summary) update() {
	sort.Slice(S.Entries, func(i, j int) bool { return S.Entries[i].Index < S.Entries[j].Index })
	switch len(S.firstHops) {
	case 0:
		S.FirstHopMean, S.FirstHopStd = 0, 0
	case 1:
		S.FirstHopMean, S.FirstHopStd = S.firstHops[0], 0
	default:
		S.FirstHopMean, S.FirstHopStd = stat.MeanStdDev(S.firstHops, nil)
	}
}

//FirstHops returns the times, in fs, of the first hop of each trajectory that hopped.
func (S *Summary) FirstHops() []float64 {
	return append([]float64(nil), S.firstHops...)
}

//Populations returns, for each iteration, the fraction of the trajectories still running
//at that iteration that are in each state.
func (S *Summary) Populations() [][]float64 {
	ret := make([][]float64, len(S.Counts))
	for i, c := range S.Counts {
		ret[i] = make([]float64, len(c))
		total := 0
		for _, v := range c {
			total += v
		}
		if total == 0 {
			continue
		}
		for s, v := range c {
			ret[i][s] = float64(v) / float64(total)
		}
	}
	return ret
}
