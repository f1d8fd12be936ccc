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

//Package config reads the options of a goNAMD run from a YAML file and from NAMD_* environment variables.
//Quantities in the file are in the units chemists use (eV, fs, Angstrom, K), and are converted
//to atomic units when the typed configurations for the other packages are built.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rmera/namd"
	"github.com/rmera/namd/dyn"
	"github.com/rmera/namd/ensemble"
	"github.com/rmera/namd/hop"
	"github.com/rmera/namd/oracle"
	"github.com/spf13/viper"
)

const (
	envPrefix       = "NAMD"
	envKeySeparator = "_"
)

//Config is the top level configuration of a run.
type Config struct {
	Title    string         `mapstructure:"title"`
	Seed     uint64         `mapstructure:"seed"`
	System   SystemConfig   `mapstructure:"system"`
	Dynamics DynamicsConfig `mapstructure:"dynamics"`
	Ensemble EnsembleConfig `mapstructure:"ensemble"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Output   OutputConfig   `mapstructure:"output"`
}

//SystemConfig describes the molecule and its electronic states.
type SystemConfig struct {
	Geometry       string               `mapstructure:"geometry"`       //XYZ file, Angstrom
	States         []string             `mapstructure:"states"`         //labels, in energy order
	Multiplicities []int                `mapstructure:"multiplicities"` //empty means all singlets
	OracleIndex    []int                `mapstructure:"oracle_index"`   //empty means the identity
	InitialState   string               `mapstructure:"initial_state"`
	AtomTypes      map[string][]float64 `mapstructure:"atom_types"`
}

//DynamicsConfig has the options for each trajectory.
type DynamicsConfig struct {
	ICEThresh      float64 `mapstructure:"ic_e_thresh"`  //eV
	ISCEThresh     float64 `mapstructure:"isc_e_thresh"` //eV
	DeltaT         float64 `mapstructure:"dt"`           //fs
	MaxSteps       int     `mapstructure:"max_steps"`
	HopMethod      string  `mapstructure:"hop_method"`
	Frustrated     string  `mapstructure:"frustrated"`
	HopThreshold   float64 `mapstructure:"hop_threshold"`
	InitKinetic    float64 `mapstructure:"init_kinetic"`     //eV
	DomainRadius   float64 `mapstructure:"domain_radius"`    //Angstrom
	MaxEnergyDrift float64 `mapstructure:"max_energy_drift"` //eV
}

//EnsembleConfig has the options for the set of trajectories.
type EnsembleConfig struct {
	InitCond  int     `mapstructure:"init_cond"`
	NInitCond int     `mapstructure:"n_init_cond"`
	Method    string  `mapstructure:"method"`
	Temp      float64 `mapstructure:"temp"` //K
	Source    string  `mapstructure:"source"` //XYZ file with the initial conditions, for the xyz method
	Format    string  `mapstructure:"format"`
	Workers   int     `mapstructure:"workers"`
}

//OracleConfig selects and sets up the energy and force model.
type OracleConfig struct {
	Kind      string        `mapstructure:"kind"` //remote, exec or harmonic
	Address   string        `mapstructure:"address"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Command   string        `mapstructure:"command"`
	Args      []string      `mapstructure:"args"`
	Gradients bool          `mapstructure:"gradients"` //the model returns gradients, not forces
	Shift     float64       `mapstructure:"shift"`     //de-normalization of the model output, Hartree
	Scale     float64       `mapstructure:"scale"`
	K         float64       `mapstructure:"k"`       //harmonic force constant, atomic units
	Offsets   []float64     `mapstructure:"offsets"` //harmonic state offsets, Hartree
}

//OutputConfig says where, and what, to write.
type OutputConfig struct {
	Dir   string `mapstructure:"dir"`
	Store string `mapstructure:"store"` //sqlite database, relative to Dir. Empty means no database
	Plots bool   `mapstructure:"plots"`
}

func applyDefaults(v *viper.Viper) {
	d := dyn.DefaultConfig()
	e := ensemble.DefaultConfig()
	v.SetDefault("title", e.Title)
	v.SetDefault("seed", e.Seed)
	v.SetDefault("system.states", []string{"S0", "S1"})
	v.SetDefault("system.initial_state", "S1")
	v.SetDefault("dynamics.ic_e_thresh", d.ICEThresh*namd.H2EV)
	v.SetDefault("dynamics.isc_e_thresh", d.ISCEThresh*namd.H2EV)
	v.SetDefault("dynamics.dt", d.DeltaT*namd.AU2FS)
	v.SetDefault("dynamics.max_steps", d.MaxSteps)
	v.SetDefault("dynamics.hop_method", d.Method.String())
	v.SetDefault("dynamics.frustrated", d.Frustrated.String())
	v.SetDefault("dynamics.hop_threshold", hop.DefaultThreshold)
	v.SetDefault("ensemble.init_cond", e.InitCond)
	v.SetDefault("ensemble.n_init_cond", e.NInitCond)
	v.SetDefault("ensemble.method", e.Method)
	v.SetDefault("ensemble.temp", e.Temp)
	v.SetDefault("ensemble.format", e.Format)
	v.SetDefault("oracle.kind", "remote")
	v.SetDefault("oracle.address", "localhost:50051")
	v.SetDefault("oracle.timeout", 30*time.Second)
	v.SetDefault("oracle.scale", 1.0)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.store", "namd.db")
	v.SetDefault("output.plots", true)
}

func newViper() *viper.Viper {
	v := viper.New()
	applyDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, namd.Errorf(namd.ErrInvalidConfiguration, "config", "unmarshal config: %s", err).Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

//Load reads the configuration file path. If path is empty, namd.yaml is searched for in the
//current directory. A missing file is not an error if path is empty: the defaults are used.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("namd")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, namd.Errorf(namd.ErrInvalidConfiguration, "Load", "read config: %s", err).Wrap(err)
		}
	}
	return unmarshal(v)
}

//Read reads a YAML configuration from r.
func Read(r io.Reader) (*Config, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, namd.Errorf(namd.ErrInvalidConfiguration, "Read", "read config: %s", err).Wrap(err)
	}
	return unmarshal(v)
}

//Validate checks the parts of the configuration that don't need files. Errors are of kind InvalidConfiguration.
func (C *Config) Validate() error {
	if _, err := C.StateSet(); err != nil {
		return err
	}
	if _, err := C.DynConfig(); err != nil {
		return err
	}
	if err := C.EnsembleConfig().Validate(); err != nil {
		return err
	}
	if C.Ensemble.Method == "xyz" && C.Ensemble.Source == "" {
		return namd.NewError(namd.ErrInvalidConfiguration, "the xyz method needs a source file", "Validate")
	}
	switch C.Oracle.Kind {
	case "remote":
		if C.Oracle.Address == "" {
			return namd.NewError(namd.ErrInvalidConfiguration, "remote oracle without address", "Validate")
		}
	case "exec":
	case "harmonic":
		if C.Oracle.K <= 0 || len(C.Oracle.Offsets) != len(C.System.States) {
			return namd.NewError(namd.ErrInvalidConfiguration, "harmonic oracle needs a positive k and one offset per state", "Validate")
		}
	default:
		return namd.Errorf(namd.ErrInvalidConfiguration, "Validate", "unknown oracle kind %q", C.Oracle.Kind)
	}
	return nil
}

//StateSet builds the electronic states.
func (C *Config) StateSet() (*namd.StateSet, error) {
	mult := C.System.Multiplicities
	if len(mult) == 0 {
		mult = make([]int, len(C.System.States))
		for i := range mult {
			mult[i] = 1
		}
	}
	idx := C.System.OracleIndex
	if len(idx) == 0 {
		idx = nil
	}
	return namd.NewStateSet(mult, C.System.States, idx)
}

//InitialState returns the state in which trajectories start.
func (C *Config) InitialState() (namd.State, error) {
	states, err := C.StateSet()
	if err != nil {
		return -1, err
	}
	return states.Parse(C.System.InitialState)
}

//DynConfig returns the options for the propagators, in atomic units.
func (C *Config) DynConfig() (*dyn.Config, error) {
	D := C.Dynamics
	method, err := hop.ParseMethod(D.HopMethod)
	if err != nil {
		return nil, err
	}
	policy, err := hop.ParsePolicy(D.Frustrated)
	if err != nil {
		return nil, err
	}
	ret := &dyn.Config{
		ICEThresh:      D.ICEThresh * namd.EV2H,
		ISCEThresh:     D.ISCEThresh * namd.EV2H,
		DeltaT:         D.DeltaT * namd.FS2AU,
		MaxSteps:       D.MaxSteps,
		Method:         method,
		Frustrated:     policy,
		HopThreshold:   D.HopThreshold,
		Seed:           C.Seed,
		InitKinetic:    D.InitKinetic * namd.EV2H,
		DomainRadius:   D.DomainRadius * namd.A2Bohr,
		MaxEnergyDrift: D.MaxEnergyDrift * namd.EV2H,
	}
	return ret, ret.Validate()
}

//EnsembleConfig returns the options for the ensemble.
func (C *Config) EnsembleConfig() *ensemble.Config {
	E := C.Ensemble
	return &ensemble.Config{
		Title:     C.Title,
		Seed:      C.Seed,
		InitCond:  E.InitCond,
		NInitCond: E.NInitCond,
		Method:    E.Method,
		Temp:      E.Temp,
		Format:    E.Format,
		Workers:   E.Workers,
	}
}

//NewOracle builds the oracle. The returned function releases its resources, and must be called
//when the oracle is no longer needed.
func (C *Config) NewOracle(ctx context.Context, center *namd.XYZFrame) (oracle.Oracle, func() error, error) {
	O := C.Oracle
	var o oracle.Oracle
	closer := func() error { return nil }
	switch O.Kind {
	case "remote":
		r, err := oracle.Dial(O.Address)
		if err != nil {
			return nil, nil, namd.Errorf(namd.ErrOracleFailure, "NewOracle", "can't connect to %s: %s", O.Address, err).Wrap(err)
		}
		r.SetTimeout(O.Timeout)
		o, closer = r, r.Close
	case "exec":
		e := oracle.NewExecHandle(O.Command, O.Args...)
		if O.Command == "" {
			e.SetCommand(os.ExpandEnv("${NAMD_ORACLE}"))
		}
		o = e
	case "harmonic":
		if center == nil {
			return nil, nil, namd.NewError(namd.ErrInvalidConfiguration, "harmonic oracle needs a center", "NewOracle")
		}
		o = &oracle.Harmonic{K: O.K, Offsets: append([]float64(nil), O.Offsets...), Center: center.Coords.Clone()}
	default:
		return nil, nil, namd.Errorf(namd.ErrInvalidConfiguration, "NewOracle", "unknown oracle kind %q", O.Kind)
	}
	if O.Gradients {
		o = &oracle.FromGradients{Oracle: o}
	}
	if O.Shift != 0 || O.Scale != 1 {
		o = &oracle.Normalized{Oracle: o, Shift: O.Shift, Scale: O.Scale}
	}
	return o, closer, nil
}

//String returns a short description of the run.
func (C *Config) String() string {
	return fmt.Sprintf("%s: %d trajectories of %d steps of %.3g fs, %s oracle", C.Title, C.Ensemble.NInitCond, C.Dynamics.MaxSteps, C.Dynamics.DeltaT, C.Oracle.Kind)
}
