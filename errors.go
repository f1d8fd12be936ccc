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

package namd

import (
	"errors"
	"fmt"
	"strings"
)

//Error kinds. Every Error returned by this module unwraps to one of these,
//so they can be tested with errors.Is.
var (
	//Malformed tensors. Fatal to the call, never retried.
	ErrShapeMismatch = errors.New("shape mismatch")
	//The energy/force model failed. Fatal to the trajectory.
	ErrOracleFailure = errors.New("oracle failure")
	//Numerically degenerate Zhu-Nakamura evaluation. The hopping layer recovers from it.
	ErrDegenerateCoupling = errors.New("degenerate coupling")
	//Non-positive timestep/threshold or similar. Fatal at construction.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	//Anything else that terminates a trajectory, like leaving the simulation domain.
	ErrTerminated = errors.New("trajectory terminated")
	//Results could not be written to, or read from, a database.
	ErrStorage = errors.New("storage failure")
)

//Decorator is the interface for errors that all packages in this library implement. The Decorate method allows to add and retrieve info from the
//error, without changing it's type or wrapping it around something else.
type Decorator interface {
	Error() string
	Decorate(string) []string //Each call also returns the "decoration" slice of strings resulting from the current call. If passed an empty string, it should just return the current value.
	Critical() bool
}

//Error is the general error type for goNAMD.
type Error struct {
	kind     error
	inner    error
	message  string
	deco     []string
	critical bool
}

//NewError returns an Error of the given kind, with caller as the first decoration.
//Errors of kind ErrDegenerateCoupling are not critical, all others are.
func NewError(kind error, message string, caller string) Error {
	err := Error{kind: kind, message: message, critical: kind != ErrDegenerateCoupling}
	if caller != "" {
		err.deco = []string{caller}
	}
	return err
}

//Errorf is NewError with a formatted message.
func Errorf(kind error, caller string, format string, a ...interface{}) Error {
	return NewError(kind, fmt.Sprintf(format, a...), caller)
}

func (err Error) Error() string {
	if len(err.deco) == 0 {
		return fmt.Sprintf("goNAMD: %s: %s", err.kind, err.message)
	}
	return fmt.Sprintf("goNAMD: %s: %s (%s)", err.kind, err.message, strings.Join(err.deco, " <- "))
}

//Unwrap returns the error kind and, if the Error wraps an error
//from somewhere else, that error.
func (err Error) Unwrap() []error {
	if err.inner != nil {
		return []error{err.kind, err.inner}
	}
	return []error{err.kind}
}

//Decorate adds new information to the error.
//Even though this method does not use a pointer as a receiver, it should work
//as E.deco is a slice, and hence a pointer itself, as long as there is capacity.
func (err Error) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

//Critical returns true if the error is critical, false otherwise
func (err Error) Critical() bool { return err.critical }

//Decorate adds caller to err if err is a Decorator, and returns a new
//Error of the same kind. Errors from other libraries are wrapped in an Error of kind
//kind. nil in, nil out.
func Decorate(err error, kind error, caller string) error {
	if err == nil {
		return nil
	}
	var e Error
	if errors.As(err, &e) {
		e.deco = append(append([]string(nil), e.deco...), caller)
		return e
	}
	return Error{kind: kind, inner: err, message: err.Error(), deco: []string{caller}, critical: kind != ErrDegenerateCoupling}
}

//IsCritical returns false only for errors that say so.
func IsCritical(err error) bool {
	var d Decorator
	if errors.As(err, &d) {
		return d.Critical()
	}
	return err != nil
}

//Wrap returns a copy of err that also unwraps to inner.
func (err Error) Wrap(inner error) Error {
	err.inner = inner
	return err
}
