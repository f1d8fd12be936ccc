/*
 * store_test.go, part of goNAMD.
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

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rmera/namd"
	"github.com/rmera/namd/dyn"
	"github.com/rmera/namd/hop"
	"github.com/rmera/namd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(id string, n int, events ...dyn.Event) *dyn.Result {
	h := dyn.NewHistory(n)
	for i := 0; i < n; i++ {
		h.Add(dyn.Frame{Iteration: i, State: 1, Coords: v3.Zeros(2), Energy: -1 - 0.1*float64(i), Kinetic: 0.1 * float64(i), Energies: []float64{-2, -1}})
	}
	return &dyn.Result{ID: id, History: h, Events: events, FinalState: 1, Status: dyn.Status{Phase: dyn.Terminated, Reason: dyn.MaxSteps}}
}

func TestStore(Te *testing.T) {
	ctx := context.Background()
	path := filepath.Join(Te.TempDir(), "db", "namd.db")
	s, err := Open(path, "run-1")
	require.NoError(Te, err)
	hops := []dyn.Event{
		{Iteration: 3, Kind: hop.Frustrated, From: 1, To: 2, Probability: 0.3},
		{Iteration: 7, Kind: hop.Hop, From: 1, To: 0, Probability: 0.9},
	}
	require.NoError(Te, s.Write(1, result("b", 10, hops...)))
	failed := result("a", 2)
	failed.Status = dyn.Status{Phase: dyn.Terminated, Reason: dyn.OracleFailed, Err: errors.New("model crashed")}
	require.NoError(Te, s.Write(0, failed))
	assert.Error(Te, s.Write(2, result("a", 1)), "IDs are unique")
	require.NoError(Te, s.Close())

	s, err = Open(path, "run-2")
	require.NoError(Te, err)
	defer s.Close()
	trajs, err := s.Trajectories(ctx)
	require.NoError(Te, err)
	require.Len(Te, trajs, 2)
	assert.Equal(Te, "a", trajs[0].ID)
	assert.Equal(Te, "run-1", trajs[0].RunID)
	assert.Equal(Te, dyn.OracleFailed.String(), trajs[0].Reason)
	assert.Equal(Te, "model crashed", trajs[0].Error)
	assert.Equal(Te, 10, trajs[1].Steps)
	assert.Equal(Te, namd.State(1), trajs[1].FinalState)
	assert.False(Te, trajs[1].Created.IsZero())

	got, err := s.Hops(ctx, "b")
	require.NoError(Te, err)
	assert.Equal(Te, hops, got)
	got, err = s.Hops(ctx, "a")
	require.NoError(Te, err)
	assert.Empty(Te, got)

	pot, kin, err := s.Energies(ctx, "b")
	require.NoError(Te, err)
	require.Len(Te, pot, 10)
	assert.InDelta(Te, -1.9, pot[9], 1e-12)
	assert.InDelta(Te, 0.9, kin[9], 1e-12)
}

func TestStoreErrors(Te *testing.T) {
	dir := Te.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(Te, os.WriteFile(blocker, []byte("x"), 0o644))
	_, err := Open(filepath.Join(blocker, "db", "namd.db"), "run-1")
	require.Error(Te, err)
	assert.True(Te, errors.Is(err, namd.ErrStorage))
	assert.True(Te, namd.IsCritical(err))

	s, err := Open(filepath.Join(dir, "namd.db"), "run-1")
	require.NoError(Te, err)
	require.NoError(Te, s.Write(0, result("a", 2)))
	//the same trajectory twice violates the primary key
	err = s.Write(0, result("a", 2))
	require.Error(Te, err)
	assert.True(Te, errors.Is(err, namd.ErrStorage))
	require.NoError(Te, s.Close())
}
