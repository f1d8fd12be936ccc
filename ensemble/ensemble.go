/*
 * ensemble.go, part of goNAMD.
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

//Package ensemble runs many independent trajectories concurrently, and summarizes them.
package ensemble

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/rmera/namd"
	"github.com/rmera/namd/dyn"
	"github.com/rmera/namd/initcond"
	"github.com/rmera/namd/oracle"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

//Config has the ensemble-wide options. There are no package-level defaults, use DefaultConfig.
type Config struct {
	Title     string  //used to name output files
	RunID     string  //identifies the run. If empty, a random UUID is used
	Seed      uint64  //global seed. Trajectory i uses streams derived from Seed and i
	InitCond  int     //index of the first initial condition
	NInitCond int     //number of trajectories
	Method    string  //initial condition sampling: "wigner", "boltzmann" or "xyz"
	Temp      float64 //sampling temperature, K
	Format    string  //trajectory output: "xyz", "ntf", "both" or "none"
	Workers   int     //trajectories run at the same time. 0 means one per CPU
}

//DefaultConfig returns the default ensemble options.
func DefaultConfig() *Config {
	return &Config{
		Title:     "namd",
		Seed:      1,
		InitCond:  0,
		NInitCond: 500,
		Method:    "wigner",
		Temp:      300,
		Format:    "xyz",
	}
}

//Validate returns an error of kind InvalidConfiguration if C can't be used.
func (C *Config) Validate() error {
	if C.NInitCond <= 0 || C.InitCond < 0 || C.Workers < 0 || C.Temp < 0 {
		return namd.Errorf(namd.ErrInvalidConfiguration, "Validate", "bad ensemble size (%d from %d), workers (%d) or temperature (%g)", C.NInitCond, C.InitCond, C.Workers, C.Temp)
	}
	switch C.Method {
	case "wigner", "boltzmann", "xyz":
	default:
		return namd.Errorf(namd.ErrInvalidConfiguration, "Validate", "unknown initial condition method %q", C.Method)
	}
	switch C.Format {
	case "xyz", "ntf", "both", "none":
	default:
		return namd.Errorf(namd.ErrInvalidConfiguration, "Validate", "unknown trajectory format %q", C.Format)
	}
	return nil
}

//Sink receives the result of each finished trajectory. Sinks are never called concurrently.
type Sink interface {
	Write(index int, res *dyn.Result) error
}

//SinkFunc adapts a function to the Sink interface.
type SinkFunc func(index int, res *dyn.Result) error

//Write calls F.
func (F SinkFunc) Write(index int, res *dyn.Result) error { return F(index, res) }

//Seeds returns the seeds for the initial condition sampling and for the hopping decisions of
//trajectory index. Different indexes always give different seeds.
func Seeds(global uint64, index int) (sampling, hopping uint64) {
	base := global*1000003 + uint64(index)
	return 2 * base, 2*base + 1
}

//Run runs cfg.NInitCond trajectories, each on its own goroutine (at most cfg.Workers at a time) with
//its own propagator, random streams and initial conditions from sampler. A trajectory that fails, even before it starts,
//is reported in the summary and doesn't affect the others. The error returned is only for problems with
//the configuration or for the cancellation of ctx.
func Run(ctx context.Context, cfg *Config, dcfg *dyn.Config, sys *namd.System, o oracle.Oracle, sampler initcond.Sampler, sinks ...Sink) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, namd.Decorate(err, namd.ErrInvalidConfiguration, "ensemble.Run")
	}
	if err := dcfg.Validate(); err != nil {
		return nil, namd.Decorate(err, namd.ErrInvalidConfiguration, "ensemble.Run")
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	sum := NewSummary(runID, cfg.Title, sys.States(), dcfg.DeltaT)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < cfg.NInitCond; i++ {
		if gctx.Err() != nil {
			break
		}
		index := cfg.InitCond + i
		g.Go(func() error {
			res, err := trajectory(gctx, index, cfg, dcfg, sys, o, sampler)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("goNAMD: trajectory %d could not start: %s", index, err)
				sum.AddFailure(index, err)
				return nil
			}
			sum.Add(index, res)
			for _, s := range sinks {
				if err := s.Write(index, res); err != nil {
					log.Printf("goNAMD: output for trajectory %d (%s) failed: %s", index, res.ID, err)
					sum.OutputErrors++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}
	if err := ctx.Err(); err != nil {
		return sum, namd.Decorate(err, namd.ErrTerminated, "ensemble.Run")
	}
	return sum, nil
}

func trajectory(ctx context.Context, index int, cfg *Config, dcfg *dyn.Config, sys *namd.System, o oracle.Oracle, sampler initcond.Sampler) (*dyn.Result, error) {
	sseed, hseed := Seeds(cfg.Seed, index)
	init, err := sampler.Sample(index, rand.NewSource(sseed))
	if err != nil {
		return nil, namd.Decorate(err, namd.ErrInvalidConfiguration, fmt.Sprintf("trajectory %d", index))
	}
	c := *dcfg
	c.Seed = hseed
	P, err := dyn.NewPropagator(&c, sys, o, init)
	if err != nil {
		return nil, namd.Decorate(err, namd.ErrInvalidConfiguration, fmt.Sprintf("trajectory %d", index))
	}
	return P.Run(ctx), nil
}
