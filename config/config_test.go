/*
 * config_test.go, part of goNAMD.
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

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rmera/namd"
	"github.com/rmera/namd/dyn"
	"github.com/rmera/namd/hop"
	"github.com/rmera/namd/oracle"
	"github.com/rmera/namd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
title: h2o
seed: 7
system:
  geometry: h2o.xyz
  states: [S0, S1, T1]
  multiplicities: [1, 1, 3]
  initial_state: S1
  atom_types:
    O: [1, 0]
    H: [0, 1]
dynamics:
  ic_e_thresh: 0.3
  dt: 0.25
  max_steps: 400
  hop_method: deterministic
  frustrated: reflect
  domain_radius: 10
ensemble:
  n_init_cond: 12
  method: boltzmann
  temp: 500
  format: ntf
  workers: 3
oracle:
  kind: harmonic
  k: 0.5
  offsets: [0, 0.2, 0.15]
  timeout: 2s
output:
  dir: out
  plots: false
`

func TestRead(Te *testing.T) {
	cfg, err := Read(strings.NewReader(testYAML))
	require.NoError(Te, err)
	assert.Equal(Te, "h2o", cfg.Title)
	assert.Equal(Te, uint64(7), cfg.Seed)
	assert.Equal(Te, 2*time.Second, cfg.Oracle.Timeout)
	assert.False(Te, cfg.Output.Plots)
	assert.Equal(Te, "namd.db", cfg.Output.Store)
	assert.Len(Te, cfg.System.AtomTypes, 2)

	states, err := cfg.StateSet()
	require.NoError(Te, err)
	assert.Equal(Te, []string{"S0", "S1", "T1"}, states.Labels())
	assert.False(Te, states.SameMultiplicity(1, 2))
	s, err := cfg.InitialState()
	require.NoError(Te, err)
	assert.Equal(Te, namd.State(1), s)

	d, err := cfg.DynConfig()
	require.NoError(Te, err)
	assert.InDelta(Te, 0.3*namd.EV2H, d.ICEThresh, 1e-12)
	assert.InDelta(Te, dyn.DefaultConfig().ISCEThresh, d.ISCEThresh, 1e-12)
	assert.InDelta(Te, 0.25*namd.FS2AU, d.DeltaT, 1e-9)
	assert.InDelta(Te, 10*namd.A2Bohr, d.DomainRadius, 1e-9)
	assert.Equal(Te, 400, d.MaxSteps)
	assert.Equal(Te, hop.Deterministic, d.Method)
	assert.Equal(Te, hop.Reflect, d.Frustrated)
	assert.Equal(Te, uint64(7), d.Seed)

	e := cfg.EnsembleConfig()
	assert.Equal(Te, 12, e.NInitCond)
	assert.Equal(Te, 3, e.Workers)
	assert.Equal(Te, "ntf", e.Format)
	assert.Equal(Te, "h2o", e.Title)
}

func TestDefaults(Te *testing.T) {
	cfg, err := Read(strings.NewReader("title: default\n"))
	require.NoError(Te, err)
	d, err := cfg.DynConfig()
	require.NoError(Te, err)
	def := dyn.DefaultConfig()
	assert.InDelta(Te, def.ICEThresh, d.ICEThresh, 1e-12)
	assert.InDelta(Te, def.DeltaT, d.DeltaT, 1e-9)
	assert.Equal(Te, def.MaxSteps, d.MaxSteps)
	assert.Equal(Te, "remote", cfg.Oracle.Kind)
	assert.Equal(Te, 500, cfg.Ensemble.NInitCond)
	assert.Equal(Te, "wigner", cfg.Ensemble.Method)
}

func TestEnv(Te *testing.T) {
	Te.Setenv("NAMD_DYNAMICS_MAX_STEPS", "10")
	Te.Setenv("NAMD_ORACLE_ADDRESS", "model:9000")
	cfg, err := Read(strings.NewReader("title: env\n"))
	require.NoError(Te, err)
	assert.Equal(Te, 10, cfg.Dynamics.MaxSteps)
	assert.Equal(Te, "model:9000", cfg.Oracle.Address)
}

func TestInvalid(Te *testing.T) {
	for _, yaml := range []string{
		"dynamics:\n  hop_method: random\n",
		"dynamics:\n  frustrated: bounce\n",
		"dynamics:\n  dt: -1\n",
		"oracle:\n  kind: dft\n",
		"oracle:\n  kind: harmonic\n  k: 1\n  offsets: [0]\n",
		"ensemble:\n  method: xyz\n",
		"ensemble:\n  n_init_cond: 0\n",
		"system:\n  states: [S0, S1]\n  multiplicities: [1]\n",
	} {
		_, err := Read(strings.NewReader(yaml))
		assert.ErrorIs(Te, err, namd.ErrInvalidConfiguration, yaml)
	}
}

func TestLoad(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "run.yaml")
	require.NoError(Te, os.WriteFile(name, []byte(testYAML), 0644))
	cfg, err := Load(name)
	require.NoError(Te, err)
	assert.Equal(Te, "h2o", cfg.Title)
	_, err = Load(filepath.Join(Te.TempDir(), "missing.yaml"))
	assert.Error(Te, err)
	assert.Contains(Te, cfg.String(), "12 trajectories")
}

func TestNewOracle(Te *testing.T) {
	cfg, err := Read(strings.NewReader(testYAML))
	require.NoError(Te, err)
	center := &namd.XYZFrame{Symbols: []string{"O", "H", "H"}, Coords: v3.Zeros(3)}
	o, closer, err := cfg.NewOracle(context.Background(), center)
	require.NoError(Te, err)
	defer closer()
	res, err := o.Evaluate(context.Background(), &oracle.Structure{Coords: v3.Zeros(3), Symbols: center.Symbols})
	require.NoError(Te, err)
	assert.Equal(Te, []float64{0, 0.2, 0.15}, res.Energies)
	_, _, err = cfg.NewOracle(context.Background(), nil)
	assert.Error(Te, err)

	cfg.Oracle.Gradients = true
	cfg.Oracle.Shift = -76
	o, _, err = cfg.NewOracle(context.Background(), center)
	require.NoError(Te, err)
	n, ok := o.(*oracle.Normalized)
	require.True(Te, ok)
	_, ok = n.Oracle.(*oracle.FromGradients)
	assert.True(Te, ok)
	res, err = o.Evaluate(context.Background(), &oracle.Structure{Coords: v3.Zeros(3), Symbols: center.Symbols})
	require.NoError(Te, err)
	assert.InDelta(Te, -75.8, res.Energies[1], 1e-12)
}
