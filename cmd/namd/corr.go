/*
 * corr.go, part of goNAMD.
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
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rmera/namd"
	"github.com/rmera/namd/dyn"
	"github.com/rmera/namd/timecorr"
	"github.com/rmera/namd/traj/ntf"
	"github.com/spf13/cobra"
)

func corrCommand() *cobra.Command {
	var (
		observable string
		dtfs       float64
		lags       int
	)
	cmd := &cobra.Command{
		Use:   "corr file.ntf",
		Short: "Autocorrelation function and spectrum of a quantity along a trajectory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			header, frames, err := ntf.ReadAll(args[0])
			if err != nil {
				return err
			}
			dt := dtfs * namd.FS2AU
			if dtfs <= 0 {
				if dt, err = strconv.ParseFloat(header["dt"], 64); err != nil {
					return fmt.Errorf("no time step in %s, use --dt", args[0])
				}
			}
			return correlation(cmd.OutOrStdout(), frames, observable, dt, lags)
		},
	}
	cmd.Flags().StringVarP(&observable, "observable", "o", "kinetic", "kinetic, potential or gap")
	cmd.Flags().Float64Var(&dtfs, "dt", 0, "time step in fs (default: from the file)")
	cmd.Flags().IntVarP(&lags, "lags", "l", 20, "number of lags to print")
	return cmd
}

func correlation(w io.Writer, frames []dyn.Frame, observable string, dt float64, lags int) error {
	var f timecorr.Observable
	switch observable {
	case "kinetic":
		f = timecorr.Kinetic
	case "potential":
		f = timecorr.Potential
	case "gap":
		f = timecorr.Gap(0, 1)
	default:
		return namd.Errorf(namd.ErrInvalidConfiguration, "corr", "unknown observable %q", observable)
	}
	h := dyn.NewHistory(len(frames))
	for _, fr := range frames {
		h.Add(fr)
	}
	series := timecorr.Series(h, f)
	ac, err := timecorr.Autocorrelation(series)
	if err != nil {
		return err
	}
	freqs, power, err := timecorr.Spectrum(series, dt)
	if err != nil {
		return err
	}
	peak, err := timecorr.Peak(freqs, power)
	if err != nil {
		return err
	}
	tbl := newTable()
	tbl.AppendHeader(table.Row{"lag (fs)", "C(t)"})
	for i, v := range ac {
		if i >= lags {
			break
		}
		tbl.AppendRow(table.Row{fmt.Sprintf("%.2f", float64(i)*dt*namd.AU2FS), fmt.Sprintf("%.4f", v)})
	}
	tbl.AppendFooter(table.Row{"peak (cm-1)", fmt.Sprintf("%.1f", peak)})
	fmt.Fprintln(w, tbl.Render())
	return nil
}
