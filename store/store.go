/*
 * store.go, part of goNAMD.
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

//Package store keeps the results of ensembles in an SQLite database.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rmera/namd"
	"github.com/rmera/namd/dyn"
	"github.com/rmera/namd/hop"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS trajectories (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	idx INTEGER NOT NULL,
	reason TEXT NOT NULL,
	steps INTEGER NOT NULL,
	final_state INTEGER NOT NULL,
	error TEXT NOT NULL,
	created TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS frames (
	traj_id TEXT NOT NULL REFERENCES trajectories(id) ON DELETE CASCADE,
	iteration INTEGER NOT NULL,
	state INTEGER NOT NULL,
	energy REAL NOT NULL,
	kinetic REAL NOT NULL,
	hop TEXT NOT NULL,
	PRIMARY KEY (traj_id, iteration)
);
CREATE TABLE IF NOT EXISTS hops (
	traj_id TEXT NOT NULL REFERENCES trajectories(id) ON DELETE CASCADE,
	iteration INTEGER NOT NULL,
	kind TEXT NOT NULL,
	from_state INTEGER NOT NULL,
	to_state INTEGER NOT NULL,
	probability REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hops_traj ON hops(traj_id);
CREATE INDEX IF NOT EXISTS idx_trajectories_run ON trajectories(run_id);
`

//Trajectory is the stored summary of one trajectory.
type Trajectory struct {
	ID         string
	RunID      string
	Index      int
	Reason     string
	Steps      int
	FinalState namd.State
	Error      string
	Created    time.Time
}

//Store is an SQLite database with ensemble results. It is safe for concurrent use.
type Store struct {
	db    *sql.DB
	mu    sync.Mutex
	runID string
}

//Open opens, or creates, the database in path. Trajectories written through the returned store
//are labeled with runID.
func Open(path, runID string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storeError(err, "Open", "failed to create database directory")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storeError(err, "Open", "failed to open database")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, storeError(err, "Open", "%s failed", pragma)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storeError(err, "Open", "failed to initialize schema")
	}
	return &Store{db: db, runID: runID}, nil
}

//storeError wraps a database error as a storage error with caller as decoration.
func storeError(err error, caller, format string, a ...interface{}) error {
	return namd.Errorf(namd.ErrStorage, caller, format+": %s", append(a, err)...).Wrap(err)
}

//Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

//Write stores the result of trajectory index, its frames and its hops, in one transaction.
func (s *Store) Write(index int, res *dyn.Result) error {
	return s.WriteContext(context.Background(), index, res)
}

//WriteContext is like Write, with a context.
func (s *Store) WriteContext(ctx context.Context, index int, res *dyn.Result) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError(err, "WriteContext", "begin transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	steps := 0
	var frames []dyn.Frame
	if res.History != nil {
		frames = res.History.Frames()
		steps = len(frames)
	}
	errstr := ""
	if res.Status.Err != nil {
		errstr = res.Status.Err.Error()
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO trajectories (id, run_id, idx, reason, steps, final_state, error, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, s.runID, index, res.Status.Reason.String(), steps, int(res.FinalState), errstr, time.Now().UTC())
	if err != nil {
		return storeError(err, "WriteContext", "insert trajectory %s", res.ID)
	}
	fstmt, err := tx.PrepareContext(ctx, `INSERT INTO frames (traj_id, iteration, state, energy, kinetic, hop) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return storeError(err, "WriteContext", "prepare frames")
	}
	defer fstmt.Close()
	for _, f := range frames {
		if _, err = fstmt.ExecContext(ctx, res.ID, f.Iteration, int(f.State), f.Energy, f.Kinetic, f.Hop.String()); err != nil {
			return storeError(err, "WriteContext", "insert frame %d of %s", f.Iteration, res.ID)
		}
	}
	for _, e := range res.Events {
		_, err = tx.ExecContext(ctx, `INSERT INTO hops (traj_id, iteration, kind, from_state, to_state, probability) VALUES (?, ?, ?, ?, ?, ?)`,
			res.ID, e.Iteration, e.Kind.String(), int(e.From), int(e.To), e.Probability)
		if err != nil {
			return storeError(err, "WriteContext", "insert hop of %s", res.ID)
		}
	}
	if err = tx.Commit(); err != nil {
		return storeError(err, "WriteContext", "commit")
	}
	return nil
}

//Trajectories returns all the stored trajectories, ordered by run and index.
func (s *Store) Trajectories(ctx context.Context) ([]Trajectory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, idx, reason, steps, final_state, error, created
		FROM trajectories ORDER BY run_id, idx`)
	if err != nil {
		return nil, storeError(err, "Trajectories", "query trajectories")
	}
	defer rows.Close()
	var ret []Trajectory
	for rows.Next() {
		var t Trajectory
		var st int
		if err := rows.Scan(&t.ID, &t.RunID, &t.Index, &t.Reason, &t.Steps, &st, &t.Error, &t.Created); err != nil {
			return nil, storeError(err, "Trajectories", "scan trajectory")
		}
		t.FinalState = namd.State(st)
		ret = append(ret, t)
	}
	return ret, rows.Err()
}

//Hops returns the hops and frustrated hops of trajectory id, in order.
func (s *Store) Hops(ctx context.Context, id string) ([]dyn.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT iteration, kind, from_state, to_state, probability
		FROM hops WHERE traj_id = ? ORDER BY iteration`, id)
	if err != nil {
		return nil, storeError(err, "Hops", "query hops")
	}
	defer rows.Close()
	var ret []dyn.Event
	for rows.Next() {
		var e dyn.Event
		var kind string
		var from, to int
		if err := rows.Scan(&e.Iteration, &kind, &from, &to, &e.Probability); err != nil {
			return nil, storeError(err, "Hops", "scan hop")
		}
		if e.Kind, err = hop.ParseKind(kind); err != nil {
			return nil, storeError(err, "Hops", "bad hop kind %q", kind)
		}
		e.From, e.To = namd.State(from), namd.State(to)
		ret = append(ret, e)
	}
	return ret, rows.Err()
}

//Energies returns the potential and kinetic energies of trajectory id, one element per frame.
func (s *Store) Energies(ctx context.Context, id string) (potential, kinetic []float64, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT energy, kinetic FROM frames WHERE traj_id = ? ORDER BY iteration`, id)
	if err != nil {
		return nil, nil, storeError(err, "Energies", "query frames")
	}
	defer rows.Close()
	for rows.Next() {
		var p, k float64
		if err := rows.Scan(&p, &k); err != nil {
			return nil, nil, storeError(err, "Energies", "scan frame")
		}
		potential = append(potential, p)
		kinetic = append(kinetic, k)
	}
	return potential, kinetic, rows.Err()
}
