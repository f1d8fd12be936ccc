/*
 * summary.go, part of goNAMD.
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

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rmera/namd/store"
	"github.com/spf13/cobra"
)

func summaryCommand() *cobra.Command {
	var dbfile string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the trajectories kept in a database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := store.Open(dbfile, "")
			if err != nil {
				return err
			}
			defer db.Close()
			return listTrajectories(cmd, db, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&dbfile, "store", "s", "namd.db", "database file")
	return cmd
}

func listTrajectories(cmd *cobra.Command, db *store.Store, w io.Writer) error {
	trajs, err := db.Trajectories(cmd.Context())
	if err != nil {
		return err
	}
	tbl := newTable()
	tbl.AppendHeader(table.Row{"run", "#", "id", "ended", "steps", "state", "hops", "created"})
	for _, t := range trajs {
		hops, err := db.Hops(cmd.Context(), t.ID)
		if err != nil {
			return err
		}
		tbl.AppendRow(table.Row{short(t.RunID), t.Index, short(t.ID), t.Reason, t.Steps, int(t.FinalState), len(hops), humanize.Time(t.Created)})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %s trajectories", humanize.Comma(int64(len(trajs))))})
	fmt.Fprintln(w, tbl.Render())
	return nil
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
