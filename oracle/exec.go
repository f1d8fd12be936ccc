/*
 * exec.go, part of goNAMD.
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

package oracle

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rmera/namd"
)

//ExecHandle evaluates a structure by running an external program, usually a small
//script wrapping a trained model. The program gets an XYZ file (Angstrom) as its last argument and writes,
//to name.engrad in its working directory:
//
//	natoms nstates
//	E_0 E_1 ... E_K-1
//	natoms lines "fx fy fz" for state 0, then for state 1, etc.
//
//Energies are in Hartree, forces in Hartree/Bohr. If the program writes gradients instead, use SetGradients.
//Each evaluation runs in its own temporary directory, so one ExecHandle can serve concurrent trajectories.
type ExecHandle struct {
	command   string
	args      []string
	inputname string
	dir       string
	gradients bool
	keep      bool
}

//NewExecHandle returns a handle that runs command with the given extra arguments.
func NewExecHandle(command string, args ...string) *ExecHandle {
	run := new(ExecHandle)
	run.SetDefaults()
	run.command = command
	run.args = args
	return run
}

//SetDefaults sets the handle to its default values.
func (O *ExecHandle) SetDefaults() {
	O.command = os.ExpandEnv("${NAMD_ORACLE}")
	O.inputname = "namd"
	O.dir = os.TempDir()
}

//Command returns the program to be run.
func (O *ExecHandle) Command() string { return O.command }

//SetCommand sets the program to be run.
func (O *ExecHandle) SetCommand(name string) { O.command = name }

//SetName sets the base name for input and output files.
func (O *ExecHandle) SetName(name string) { O.inputname = name }

//SetDir sets the directory where the per-evaluation directories are created.
func (O *ExecHandle) SetDir(dir string) { O.dir = dir }

//SetGradients tells the handle that the program writes gradients, not forces.
func (O *ExecHandle) SetGradients(g bool) { O.gradients = g }

//KeepFiles keeps the evaluation directories around, for debugging.
func (O *ExecHandle) KeepFiles(keep bool) { O.keep = keep }

//BuildInput writes the XYZ input for s in the directory dir.
func (O *ExecHandle) BuildInput(dir string, s *Structure) error {
	if s == nil || s.Coords == nil || len(s.Symbols) != s.Len() {
		return Error{ErrCantInput, O.command, O.inputname, "missing coordinates or symbols", []string{"BuildInput"}, true}
	}
	f, err := os.Create(filepath.Join(dir, O.inputname+".xyz"))
	if err != nil {
		return Error{ErrCantInput, O.command, O.inputname, err.Error(), []string{"os.Create", "BuildInput"}, true}
	}
	defer f.Close()
	if err := namd.XYZWrite(f, s.Symbols, s.Coords, nil, "goNAMD oracle input"); err != nil {
		return Error{ErrCantInput, O.command, O.inputname, err.Error(), []string{"XYZWrite", "BuildInput"}, true}
	}
	return nil
}

//Run runs the program in dir and waits for it, or for ctx to be done.
//The program's output goes to name.out in dir.
func (O *ExecHandle) Run(ctx context.Context, dir string) error {
	if O.command == "" {
		return Error{ErrNotRunning, "", O.inputname, "no command set", []string{"Run"}, true}
	}
	out, err := os.Create(filepath.Join(dir, O.inputname+".out"))
	if err != nil {
		return Error{ErrNotRunning, O.command, O.inputname, err.Error(), []string{"os.Create", "Run"}, true}
	}
	defer out.Close()
	args := append(append([]string(nil), O.args...), O.inputname+".xyz")
	command := exec.CommandContext(ctx, O.command, args...)
	command.Dir = dir
	command.Stdout = out
	command.Stderr = out
	if err := command.Run(); err != nil {
		return Error{ErrNotRunning, O.command, O.inputname, err.Error(), []string{"exec.Run", "Run"}, true}
	}
	return nil
}

//EnergiesForces reads the results of a previous run in dir.
func (O *ExecHandle) EnergiesForces(dir string) (*Result, error) {
	name := filepath.Join(dir, O.inputname+".engrad")
	f, err := os.Open(name)
	if err != nil {
		return nil, Error{ErrNoEnergy, O.command, O.inputname, err.Error(), []string{"os.Open", "EnergiesForces"}, true}
	}
	defer f.Close()
	scan := bufio.NewScanner(f)
	next := func() ([]float64, error) {
		for scan.Scan() {
			fields := strings.Fields(scan.Text())
			if len(fields) == 0 {
				continue
			}
			ret := make([]float64, len(fields))
			for i, v := range fields {
				ret[i], err = strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, err
				}
			}
			return ret, nil
		}
		if scan.Err() != nil {
			return nil, scan.Err()
		}
		return nil, fmt.Errorf("unexpected end of file")
	}
	head, err := next()
	if err != nil || len(head) != 2 {
		return nil, Error{ErrNoEnergy, O.command, O.inputname, "bad header", []string{"EnergiesForces"}, true}
	}
	natoms, nstates := int(head[0]), int(head[1])
	if natoms < 1 || nstates < 1 {
		return nil, Error{ErrNoEnergy, O.command, O.inputname, "no atoms or no states", []string{"EnergiesForces"}, true}
	}
	E, err := next()
	if err != nil || len(E) != nstates {
		return nil, Error{ErrNoEnergy, O.command, O.inputname, "bad energies line", []string{"EnergiesForces"}, true}
	}
	R := NewResult(natoms, nstates)
	copy(R.Energies, E)
	sign := 1.0
	if O.gradients {
		sign = -1
	}
	for k := 0; k < nstates; k++ {
		for i := 0; i < natoms; i++ {
			row, err := next()
			if err != nil || len(row) != 3 {
				return nil, Error{ErrNoForces, O.command, O.inputname, fmt.Sprintf("state %d atom %d", k, i), []string{"EnergiesForces"}, true}
			}
			R.Forces[k].SetRow(i, []float64{sign * row[0], sign * row[1], sign * row[2]})
		}
	}
	return R, nil
}

//Evaluate implements Oracle.
func (O *ExecHandle) Evaluate(ctx context.Context, s *Structure) (*Result, error) {
	dir, err := os.MkdirTemp(O.dir, O.inputname+"-")
	if err != nil {
		return nil, Error{ErrCantInput, O.command, O.inputname, err.Error(), []string{"os.MkdirTemp", "Evaluate"}, true}
	}
	if !O.keep {
		defer os.RemoveAll(dir)
	} else {
		log.Printf("goNAMD: oracle files kept in %s", dir)
	}
	if err := O.BuildInput(dir, s); err != nil {
		return nil, errDecorate(err, "Evaluate")
	}
	if err := O.Run(ctx, dir); err != nil {
		return nil, errDecorate(err, "Evaluate")
	}
	R, err := O.EnergiesForces(dir)
	if err != nil {
		return nil, errDecorate(err, "Evaluate")
	}
	if R.Forces[0].NVecs() != s.Len() {
		return nil, namd.Errorf(namd.ErrShapeMismatch, "ExecHandle.Evaluate", "the program returned %d atoms, expected %d", R.Forces[0].NVecs(), s.Len())
	}
	return R, nil
}

//Errors

//Error is the error type for external oracle programs.
type Error struct {
	message    string //One of the messages below
	program    string //the program that failed
	inputname  string //the input file that has problems, or empty string if none.
	additional string
	deco       []string
	critical   bool
}

//Error returns the error message.
func (err Error) Error() string {
	return fmt.Sprintf("%s (%s/%s) Message: %s. %s", err.program, err.inputname, strings.Join(err.deco, "<-"), err.message, err.additional)
}

//Decorate adds dec to the decoration slice of the error and returns the slice.
func (err Error) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

//Critical returns whether the error is critical.
func (err Error) Critical() bool { return err.critical }

//Unwrap makes every Error an oracle failure.
func (err Error) Unwrap() error { return namd.ErrOracleFailure }

//errDecorate returns err with caller added to its decorations.
func errDecorate(err error, caller string) error {
	if e, ok := err.(Error); ok {
		e.deco = append(append([]string(nil), e.deco...), caller)
		return e
	}
	return namd.Decorate(err, namd.ErrOracleFailure, caller)
}

const (
	ErrNoEnergy   = "Couldn't read energies from program output"
	ErrNoForces   = "Couldn't read forces from program output"
	ErrNotRunning = "Couldn't run program"
	ErrCantInput  = "Can't build input file"
)
