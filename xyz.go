/*
 * xyz.go, part of goNAMD.
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
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rmera/namd/v3"
)

//XYZFrame is one frame of a multi-XYZ file. Coords are in Bohr, Velo (which can be nil)
//in atomic units.
type XYZFrame struct {
	Comment string
	Symbols []string
	Coords  *v3.Matrix
	Velo    *v3.Matrix
}

//XYZFileRead reads all frames of the XYZ file xyzname. See XYZRead.
func XYZFileRead(xyzname string) ([]*XYZFrame, error) {
	xyzfile, err := os.Open(xyzname)
	if err != nil {
		return nil, err
	}
	defer xyzfile.Close()
	frames, err := XYZRead(xyzfile)
	if err != nil {
		return nil, Decorate(err, ErrInvalidConfiguration, "XYZFileRead "+xyzname)
	}
	return frames, nil
}

//XYZRead reads all the frames from a multi-XYZ stream. Coordinates in the file are in Angstrom
//and are returned in Bohr. If the atom lines carry 3 extra columns, they are read as
//velocities, in atomic units, and returned unchanged.
func XYZRead(r io.Reader) ([]*XYZFrame, error) {
	xyz := bufio.NewReader(r)
	var frames []*XYZFrame
	for {
		line, err := xyz.ReadString('\n')
		if strings.TrimSpace(line) == "" && err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if strings.TrimSpace(line) == "" {
			continue //blank lines between frames
		}
		natoms, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || natoms <= 0 {
			return nil, Errorf(ErrInvalidConfiguration, "XYZRead", "ill formatted XYZ: bad atom count in frame %d", len(frames))
		}
		f, err := readXYZFrame(xyz, natoms)
		if err != nil {
			return nil, Decorate(err, ErrInvalidConfiguration, fmt.Sprintf("XYZRead frame %d", len(frames)))
		}
		frames = append(frames, f)
	}
	if len(frames) == 0 {
		return nil, NewError(ErrInvalidConfiguration, "no frames in XYZ", "XYZRead")
	}
	return frames, nil
}

func readXYZFrame(xyz *bufio.Reader, natoms int) (*XYZFrame, error) {
	comment, err := xyz.ReadString('\n')
	if err != nil {
		return nil, NewError(ErrInvalidConfiguration, "truncated frame", "readXYZFrame")
	}
	f := &XYZFrame{Comment: strings.TrimSpace(comment), Symbols: make([]string, natoms)}
	coords := make([]float64, 3*natoms)
	var velo []float64
	for i := 0; i < natoms; i++ {
		line, err := xyz.ReadString('\n')
		if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
			return nil, Errorf(ErrInvalidConfiguration, "readXYZFrame", "truncated frame, %d of %d atoms read", i, natoms)
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, Errorf(ErrInvalidConfiguration, "readXYZFrame", "atom line %d ill formed", i)
		}
		if i == 0 && len(fields) >= 7 {
			velo = make([]float64, 3*natoms)
		}
		f.Symbols[i] = fields[0]
		for j := 0; j < 3; j++ {
			c, err := strconv.ParseFloat(fields[j+1], 64)
			if err != nil {
				return nil, Errorf(ErrInvalidConfiguration, "readXYZFrame", "atom line %d: %s", i, err)
			}
			coords[3*i+j] = c * A2Bohr
			if velo == nil {
				continue
			}
			if len(fields) < 7 {
				return nil, Errorf(ErrInvalidConfiguration, "readXYZFrame", "atom line %d has no velocities", i)
			}
			velo[3*i+j], err = strconv.ParseFloat(fields[j+4], 64)
			if err != nil {
				return nil, Errorf(ErrInvalidConfiguration, "readXYZFrame", "atom line %d: %s", i, err)
			}
		}
	}
	f.Coords, _ = v3.NewMatrix(coords)
	if velo != nil {
		f.Velo, _ = v3.NewMatrix(velo)
	}
	return f, nil
}

//XYZWrite writes one frame to out. coords are in Bohr and written in Angstrom.
//If velo is not nil, velocities are written, in atomic units, after the coordinates.
func XYZWrite(out io.Writer, symbols []string, coords, velo *v3.Matrix, comment string) error {
	if coords == nil || coords.NVecs() != len(symbols) || (velo != nil && !velo.SameShape(coords)) {
		return NewError(ErrShapeMismatch, "symbols, coordinates and velocities don't match", "XYZWrite")
	}
	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "%-4d\n%s\n", len(symbols), strings.ReplaceAll(comment, "\n", " "))
	for i, s := range symbols {
		c := coords.RawRowView(i)
		fmt.Fprintf(w, "%-2s  %12.6f %12.6f %12.6f", s, c[0]*Bohr2A, c[1]*Bohr2A, c[2]*Bohr2A)
		if velo != nil {
			v := velo.RawRowView(i)
			fmt.Fprintf(w, " %14.8f %14.8f %14.8f", v[0], v[1], v[2])
		}
		w.WriteString("\n")
	}
	return w.Flush()
}
