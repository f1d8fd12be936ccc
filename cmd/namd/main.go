/*
 * main.go, part of goNAMD.
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

//namd runs ensembles of Zhu-Nakamura nonadiabatic molecular dynamics trajectories.
package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

//verbosity is the global verbosity level, set with -v.
var verbosity int

//LogV prints d to stderr if the verbosity is at least vref.
func LogV(vref int, d ...interface{}) {
	if verbosity >= vref {
		fmt.Fprintln(os.Stderr, d...)
	}
}

//newTable returns a table writer with the light style. Headers and footers are printed as given.
func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Format.Header = text.FormatDefault
	tbl.Style().Format.Footer = text.FormatDefault
	return tbl
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "namd",
		Short: "Zhu-Nakamura nonadiabatic molecular dynamics",
		Long: `namd propagates ensembles of classical trajectories on the potential energy surfaces
given by an energy and force model, hopping between electronic states with the
Zhu-Nakamura probabilities.

Commands:
  run       run an ensemble
  summary   show the trajectories kept in a database
  corr      autocorrelation and spectrum along one trajectory
  version   show the version`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "verbose output, repeat for more")
	root.AddCommand(runCommand(), summaryCommand(), corrCommand(), versionCommand())
	return root
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "goNAMD %s\n", version)
		},
	}
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
