/*
 * run.go, part of goNAMD.
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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rmera/namd"
	"github.com/rmera/namd/config"
	"github.com/rmera/namd/dyn"
	"github.com/rmera/namd/ensemble"
	"github.com/rmera/namd/initcond"
	"github.com/rmera/namd/namdplot"
	"github.com/rmera/namd/oracle"
	"github.com/rmera/namd/store"
	"github.com/rmera/namd/traj/ntf"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func runCommand() *cobra.Command {
	var cfgfile string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an ensemble of trajectories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgfile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			sum, err := execute(ctx, cfg)
			if sum != nil {
				printSummary(cmd.OutOrStdout(), sum)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&cfgfile, "config", "c", "", "configuration file (default ./namd.yaml)")
	return cmd
}

//system reads the geometry and builds the system described in cfg.
func system(cfg *config.Config) (*namd.System, *namd.XYZFrame, error) {
	frames, err := namd.XYZFileRead(cfg.System.Geometry)
	if err != nil {
		return nil, nil, err
	}
	states, err := cfg.StateSet()
	if err != nil {
		return nil, nil, err
	}
	var key namd.AtomTypeKey
	if len(cfg.System.AtomTypes) > 0 {
		key = namd.AtomTypeKey(cfg.System.AtomTypes)
	}
	sys, err := namd.NewSystem(frames[0].Symbols, nil, key, states)
	if err != nil {
		return nil, nil, err
	}
	return sys, frames[0], nil
}

func sampler(ctx context.Context, cfg *config.Config, o oracle.Oracle, sys *namd.System, geom *namd.XYZFrame) (initcond.Sampler, error) {
	state, err := cfg.InitialState()
	if err != nil {
		return nil, err
	}
	switch cfg.Ensemble.Method {
	case "wigner":
		LogV(1, "Computing the normal modes")
		w, err := initcond.NewWigner(ctx, o, sys, geom.Coords, state, cfg.Ensemble.Temp)
		if err != nil {
			return nil, err
		}
		LogV(2, "Frequencies (au):", w.Frequencies())
		return w, nil
	case "boltzmann":
		return &initcond.Boltzmann{Masses: sys.Masses(), Coords: geom.Coords, Temp: cfg.Ensemble.Temp, State: state}, nil
	case "xyz":
		return initcond.FromXYZ(cfg.Ensemble.Source, 0, state)
	}
	return nil, namd.Errorf(namd.ErrInvalidConfiguration, "sampler", "unknown initial condition method %q", cfg.Ensemble.Method)
}

//execute runs the ensemble described by cfg and writes all the outputs.
func execute(ctx context.Context, cfg *config.Config) (*ensemble.Summary, error) {
	start := time.Now()
	LogV(1, "Run:", cfg)
	sys, geom, err := system(cfg)
	if err != nil {
		return nil, err
	}
	o, closer, err := cfg.NewOracle(ctx, geom)
	if err != nil {
		return nil, err
	}
	defer closer()
	counter := &oracle.Counter{Oracle: o}
	dcfg, err := cfg.DynConfig()
	if err != nil {
		return nil, err
	}
	ecfg := cfg.EnsembleConfig()
	ecfg.RunID = uuid.NewString()
	smp, err := sampler(ctx, cfg, counter, sys, geom)
	if err != nil {
		return nil, err
	}
	dir := cfg.Output.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	header := map[string]string{"title": cfg.Title, "run_id": ecfg.RunID, "dt": fmt.Sprint(dcfg.DeltaT)}
	var sinks []ensemble.Sink
	if ecfg.Format == "ntf" || ecfg.Format == "both" {
		sinks = append(sinks, &ntf.Sink{Dir: dir, Prefix: cfg.Title, Header: header})
	}
	if ecfg.Format == "xyz" || ecfg.Format == "both" {
		sinks = append(sinks, &xyzSink{dir: dir, prefix: cfg.Title, symbols: sys.Symbols()})
	}
	if cfg.Output.Store != "" {
		db, err := store.Open(filepath.Join(dir, cfg.Output.Store), ecfg.RunID)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		sinks = append(sinks, db)
	}
	first := new(firstSink)
	sinks = append(sinks, first)

	LogV(1, "Running", ecfg.NInitCond, "trajectories, run", ecfg.RunID)
	sum, err := ensemble.Run(ctx, ecfg, dcfg, sys, counter, smp, sinks...)
	if sum == nil {
		return nil, err
	}
	LogV(1, "Finished in", time.Since(start).Round(time.Millisecond), "with", humanize.Comma(counter.Calls()), "oracle calls")
	if h := sum.FirstHopHistogram(10); h != nil {
		LogV(1, "Distribution of the first hop times (fs):\n"+h.String())
	}
	if werr := writeSummary(filepath.Join(dir, "summary.yaml"), sum); werr != nil && err == nil {
		err = werr
	}
	if cfg.Output.Plots && len(sum.Counts) > 0 {
		if perr := namdplot.Populations(sum, cfg.Title+" populations", filepath.Join(dir, cfg.Title+"-populations.png")); perr != nil {
			LogV(0, "Can't plot the populations:", perr)
		}
		if h := first.history(); h != nil {
			if perr := namdplot.Energies(h, dcfg.DeltaT, cfg.Title+" energies", filepath.Join(dir, cfg.Title+"-energies.png")); perr != nil {
				LogV(0, "Can't plot the energies:", perr)
			}
		}
	}
	return sum, err
}

func writeSummary(name string, sum *ensemble.Summary) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(sum); err != nil {
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(w io.Writer, sum *ensemble.Summary) {
	tbl := newTable()
	tbl.SetTitle(fmt.Sprintf("%s (%s)", sum.Title, sum.RunID))
	tbl.AppendRows([]table.Row{
		{"trajectories", humanize.Comma(int64(sum.Trajectories))},
		{"completed", humanize.Comma(int64(sum.Completed))},
		{"not started", humanize.Comma(int64(sum.Failed))},
		{"hops", humanize.Comma(int64(sum.Hops))},
		{"frustrated hops", humanize.Comma(int64(sum.Frustrated))},
		{"first hop (fs)", fmt.Sprintf("%.2f ± %.2f", sum.FirstHopMean, sum.FirstHopStd)},
	})
	for reason, n := range sum.Reasons {
		tbl.AppendRow(table.Row{"ended: " + reason, humanize.Comma(int64(n))})
	}
	if pops := sum.Populations(); len(pops) > 0 {
		last := pops[len(pops)-1]
		for i, label := range sum.States {
			tbl.AppendRow(table.Row{"final population " + label, fmt.Sprintf("%.3f", last[i])})
		}
	}
	fmt.Fprintln(w, tbl.Render())
}

//xyzSink writes each trajectory to a multi-frame XYZ file with velocities.
type xyzSink struct {
	dir     string
	prefix  string
	symbols []string
}

func (x *xyzSink) Write(index int, res *dyn.Result) error {
	if res.History == nil || res.History.Len() == 0 {
		return nil
	}
	f, err := os.Create(filepath.Join(x.dir, fmt.Sprintf("%s-%04d.xyz", x.prefix, index)))
	if err != nil {
		return err
	}
	for _, fr := range res.History.Frames() {
		comment := fmt.Sprintf("iteration %d state %d energy %.10f kinetic %.10f %s", fr.Iteration, fr.State, fr.Energy, fr.Kinetic, fr.Hop)
		if err := namd.XYZWrite(f, x.symbols, fr.Coords, fr.Velo, comment); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

//firstSink keeps the history of the trajectory with the lowest index.
type firstSink struct {
	mu    sync.Mutex
	index int
	h     *dyn.History
}

func (F *firstSink) Write(index int, res *dyn.Result) error {
	F.mu.Lock()
	defer F.mu.Unlock()
	if res.History != nil && res.History.Len() > 0 && (F.h == nil || index < F.index) {
		F.index, F.h = index, res.History
	}
	return nil
}

func (F *firstSink) history() *dyn.History {
	F.mu.Lock()
	defer F.mu.Unlock()
	return F.h
}
