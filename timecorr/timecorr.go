/*
 * timecorr.go, part of goNAMD.
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

//Package timecorr computes time correlation functions and spectra of quantities along trajectories.
package timecorr

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/rmera/namd"
	"github.com/rmera/namd/dyn"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

//Observable is a scalar function of a frame.
type Observable func(f dyn.Frame) float64

//Kinetic returns the kinetic energy of the frame.
func Kinetic(f dyn.Frame) float64 { return f.Kinetic }

//Potential returns the potential energy of the populated state.
func Potential(f dyn.Frame) float64 { return f.Energy }

//Gap returns an observable that gives E_b - E_a.
func Gap(a, b namd.State) Observable {
	return func(f dyn.Frame) float64 {
		return f.Energies[b] - f.Energies[a]
	}
}

//Series evaluates f on each frame of h.
func Series(h *dyn.History, f Observable) []float64 {
	ret := make([]float64, 0, h.Len())
	for _, fr := range h.Frames() {
		ret = append(ret, f(fr))
	}
	return ret
}

//CrossCorrelation returns the normalized cross-correlation of c1 and c2 for lags 0 to len(c1)-1,
//computed with zero-padded FFTs. If c1 and c2 are the same series, this is the autocorrelation function,
//which is 1 at lag 0. The series must have the same length, at least 2, and not be constant.
func CrossCorrelation(c1, c2 []float64) ([]float64, error) {
	n := len(c1)
	if n != len(c2) || n < 2 {
		return nil, namd.Errorf(namd.ErrShapeMismatch, "CrossCorrelation", "series of lengths %d and %d", len(c1), len(c2))
	}
	c1mean, c1std := stat.PopMeanStdDev(c1, nil)
	c2mean, c2std := stat.PopMeanStdDev(c2, nil)
	if c1std == 0 || c2std == 0 {
		return nil, namd.NewError(namd.ErrInvalidConfiguration, "constant series", "CrossCorrelation")
	}
	c1pad := make([]complex128, 2*n)
	c2pad := make([]complex128, 2*n)
	for i := range c1 {
		c1pad[i] = complex(c1[i]-c1mean, 0)
		c2pad[i] = complex(c2[i]-c2mean, 0)
	}
	f := fourier.NewCmplxFFT(2 * n)
	f.Coefficients(c1pad, c1pad)
	f.Coefficients(c2pad, c2pad)
	for i, v := range c2pad {
		c1pad[i] = cmplx.Conj(c1pad[i]) * v
	}
	f.Sequence(c1pad, c1pad)
	ret := make([]float64, n)
	norm := 1 / (float64(2*n) * float64(n) * c1std * c2std)
	for i := range ret {
		ret[i] = real(c1pad[i]) * norm
	}
	return ret, nil
}

//Autocorrelation is CrossCorrelation(c, c).
func Autocorrelation(c []float64) ([]float64, error) {
	return CrossCorrelation(c, c)
}

//Spectrum returns the power spectrum of the series c, sampled every dt (atomic units),
//and the corresponding frequencies in cm-1. The mean of c is removed first.
func Spectrum(c []float64, dt float64) (freqs, power []float64, err error) {
	if len(c) < 2 || dt <= 0 {
		return nil, nil, namd.Errorf(namd.ErrInvalidConfiguration, "Spectrum", "can't get a spectrum from %d points with time step %g", len(c), dt)
	}
	d := append([]float64(nil), c...)
	floats.AddConst(-stat.Mean(c, nil), d)
	fft := fourier.NewFFT(len(d))
	coef := fft.Coefficients(nil, d)
	freqs = make([]float64, len(coef))
	power = make([]float64, len(coef))
	for i, v := range coef {
		//Freq gives cycles per sample.
		freqs[i] = fft.Freq(i) / dt * AU2Wavenumber
		power[i] = real(v)*real(v) + imag(v)*imag(v)
	}
	return freqs, power, nil
}

//AU2Wavenumber converts frequencies in cycles per atomic unit of time to cm-1.
const AU2Wavenumber = 2 * math.Pi * 219474.6313632

//Peak returns the frequency of the most intense component of a spectrum, ignoring the zero frequency.
func Peak(freqs, power []float64) (float64, error) {
	if len(freqs) != len(power) || len(power) < 2 {
		return 0, namd.Errorf(namd.ErrShapeMismatch, "Peak", "%d frequencies and %d intensities", len(freqs), len(power))
	}
	return freqs[1+floats.MaxIdx(power[1:])], nil
}

//String formats a correlation function, one lag (in fs) per line.
func String(corr []float64, dt float64) string {
	ret := ""
	for i, v := range corr {
		ret += fmt.Sprintf("%8.2f %8.4f\n", float64(i)*dt*namd.AU2FS, v)
	}
	return ret
}
