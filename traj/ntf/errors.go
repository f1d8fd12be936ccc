/*
 * errors.go, part of goNAMD.
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

package ntf

import (
	"errors"
	"fmt"

	"github.com/rmera/namd"
)

//Error is the general structure for NTF trajectory errors.
type Error struct {
	message  string
	filename string //the file that has problems, or empty string if none.
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("ntf file %s error: %s", err.filename, err.message)
}

//Decorate adds new information to the error.
func (err Error) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//FileName returns the file to which the failing trajectory was associated.
func (err Error) FileName() string { return err.filename }

//Format returns the format of the file associated to the error.
func (err Error) Format() string { return "ntf" }

//Critical returns true if the error is critical, false otherwise.
func (err Error) Critical() bool { return err.critical }

const (
	TrajUnIniRead  = "Traj object uninitialized to read"
	TrajUnIniWrite = "Traj object uninitialized to write"
	UnableToOpen   = "Unable to open file"
	NilCoordinates = "Given nil coordinates"
	WrongFormat    = "Wrong format in the NTF file or frame"
)

//LastFrameError is returned by Next at the normal end of a trajectory.
type LastFrameError interface {
	error
	NormalLastFrameTermination()
}

//IsLastFrame returns true if err signals the normal end of a trajectory.
func IsLastFrame(err error) bool {
	var l LastFrameError
	return errors.As(err, &l)
}

type lastFrameError struct {
	deco     []string
	fileName string
}

//NormalLastFrameTermination does nothing.
func (E *lastFrameError) NormalLastFrameTermination() {}

func (E *lastFrameError) FileName() string { return E.fileName }

func (E *lastFrameError) Error() string { return "EOF" }

func (E *lastFrameError) Critical() bool { return false }

func (E *lastFrameError) Format() string { return "ntf" }

func (E *lastFrameError) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

func newlastFrameError(filename string, caller string) *lastFrameError {
	return &lastFrameError{fileName: filename, deco: []string{caller}}
}

//errDecorate adds the caller to err, if it is a decorable error. Nil is returned for nil errors.
func errDecorate(err error, caller string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(Error); ok {
		e.deco = append(append([]string(nil), e.deco...), caller)
		return e
	}
	var d namd.Decorator
	if errors.As(err, &d) {
		d.Decorate(caller)
	}
	return err
}
