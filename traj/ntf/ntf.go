/*
 * ntf.go, part of goNAMD.
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
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/rmera/namd"
	"github.com/rmera/namd/dyn"
	"github.com/rmera/namd/hop"
	"github.com/rmera/namd/v3"
)

const defaultPrec = 10

//NtfW writes NTF files.
type NtfW struct {
	f         *os.File
	h         io.WriteCloser
	w         *bufio.Writer
	natoms    int
	nstates   int
	filename  string
	writeable bool
	prec      int
}

//NewWriter creates the file name and writes the header to it. The keys of header are written in
//alphabetical order. name ending in "z" gives a gzip-compressed file, anything else, zstd.
func NewWriter(name string, natoms, nstates int, header map[string]string) (*NtfW, error) {
	if natoms <= 0 || nstates <= 0 {
		return nil, Error{fmt.Sprintf("invalid number of atoms (%d) or states (%d)", natoms, nstates), name, []string{"NewWriter"}, true}
	}
	S := &NtfW{natoms: natoms, nstates: nstates, filename: name, prec: defaultPrec}
	var err error
	S.f, err = os.Create(name)
	if err != nil {
		return nil, Error{UnableToOpen + ": " + err.Error(), name, []string{"NewWriter"}, true}
	}
	if strings.HasSuffix(strings.ToLower(name), "z") {
		S.h, err = gzip.NewWriterLevel(S.f, gzip.BestCompression)
	} else {
		S.h, err = zstd.NewWriter(S.f, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	}
	if err != nil {
		S.f.Close()
		return nil, Error{"can't start the compressor: " + err.Error(), name, []string{"NewWriter"}, true}
	}
	S.w = bufio.NewWriter(S.h)
	if p, ok := header["prec"]; ok {
		prec, err := strconv.Atoi(p)
		if err == nil && prec > 0 {
			S.prec = prec
		} else {
			log.Printf("Invalid precision for trajectory %s. Will use the default", S.filename)
		}
	}
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(S.w, "%s=%s\n", k, header[k])
	}
	fmt.Fprintf(S.w, "** %d %d\n", S.natoms, S.nstates)
	S.writeable = true
	return S, nil
}

//Len returns the number of atoms in each frame.
func (S *NtfW) Len() int {
	return S.natoms
}

func (S *NtfW) float(f float64) string {
	return strconv.FormatFloat(f, 'e', S.prec-1, 64)
}

//WNext writes one frame. f.Forces and f.Energies can be nil, in which case zeros are written.
func (S *NtfW) WNext(f *dyn.Frame) error {
	if !S.writeable {
		return Error{TrajUnIniWrite, S.filename, []string{"WNext"}, true}
	}
	if f == nil || f.Coords == nil {
		return Error{NilCoordinates, S.filename, []string{"WNext"}, true}
	}
	if f.Coords.NVecs() != S.natoms || (f.Forces != nil && f.Forces.NVecs() != S.natoms) {
		return Error{fmt.Sprintf("%d coordinates given, but %d expected", f.Coords.NVecs(), S.natoms), S.filename, []string{"WNext"}, true}
	}
	if f.Energies != nil && len(f.Energies) != S.nstates {
		return Error{fmt.Sprintf("%d energies given, but %d expected", len(f.Energies), S.nstates), S.filename, []string{"WNext"}, true}
	}
	line := make([]string, 0, 6+S.nstates)
	line = append(line, "*", strconv.Itoa(f.Iteration), strconv.Itoa(int(f.State)), S.float(f.Energy), S.float(f.Kinetic), f.Hop.String())
	for i := 0; i < S.nstates; i++ {
		e := 0.0
		if f.Energies != nil {
			e = f.Energies[i]
		}
		line = append(line, S.float(e))
	}
	S.w.WriteString(strings.Join(line, " ") + "\n")
	atom := make([]string, 6)
	for i := 0; i < S.natoms; i++ {
		for j := 0; j < 3; j++ {
			atom[j] = S.float(f.Coords.At(i, j))
			atom[j+3] = "0"
			if f.Forces != nil {
				atom[j+3] = S.float(f.Forces.At(i, j))
			}
		}
		if _, err := S.w.WriteString(strings.Join(atom, " ") + "\n"); err != nil {
			return Error{"can't write frame: " + err.Error(), S.filename, []string{"WNext"}, true}
		}
	}
	return nil
}

//Close flushes the buffers and closes the file. The writer can't be used after this call.
func (S *NtfW) Close() error {
	if S == nil || !S.writeable {
		return nil
	}
	S.writeable = false
	err := S.w.Flush()
	if err2 := S.h.Close(); err == nil {
		err = err2
	}
	if err2 := S.f.Close(); err == nil {
		err = err2
	}
	if err != nil {
		return Error{"can't close: " + err.Error(), S.filename, []string{"Close"}, true}
	}
	return nil
}

//zstd.Decoder doesn't implement io.ReadCloser.
type zstdrc struct {
	*zstd.Decoder
}

func (z zstdrc) Close() error {
	z.Decoder.Close()
	return nil
}

//NtfR reads NTF files.
type NtfR struct {
	f        *os.File
	dec      io.ReadCloser
	h        *bufio.Reader
	natoms   int
	nstates  int
	filename string
	readable bool
	line     int
}

//New opens an NTF file for reading, and returns the handle and the header.
func New(name string) (*NtfR, map[string]string, error) {
	S := &NtfR{filename: name, natoms: -1}
	var err error
	S.f, err = os.Open(name)
	if err != nil {
		return nil, nil, Error{UnableToOpen + ": " + err.Error(), name, []string{"New"}, true}
	}
	if strings.HasSuffix(strings.ToLower(name), "z") {
		S.dec, err = gzip.NewReader(bufio.NewReader(S.f))
	} else {
		var d *zstd.Decoder
		d, err = zstd.NewReader(bufio.NewReader(S.f))
		if err == nil {
			S.dec = zstdrc{d}
		}
	}
	if err != nil {
		S.f.Close()
		return nil, nil, Error{"can't read header: " + err.Error(), name, []string{"New"}, true}
	}
	S.h = bufio.NewReader(S.dec)
	m := make(map[string]string)
	for {
		str, err := S.readLine()
		if err != nil {
			S.close()
			return nil, nil, Error{"can't read header: " + err.Error(), name, []string{"New"}, true}
		}
		if strings.HasPrefix(str, "**") {
			fields := strings.Fields(str)
			if len(fields) != 3 {
				S.close()
				return nil, nil, Error{fmt.Sprintf("malformed size line '%s'", str), name, []string{"New"}, true}
			}
			S.natoms, err = strconv.Atoi(fields[1])
			if err == nil {
				S.nstates, err = strconv.Atoi(fields[2])
			}
			if err != nil || S.natoms <= 0 || S.nstates <= 0 {
				S.close()
				return nil, nil, Error{fmt.Sprintf("can't read the number of atoms and states from '%s'", str), name, []string{"New"}, true}
			}
			break
		}
		k, v, ok := strings.Cut(str, "=")
		if !ok {
			S.close()
			return nil, nil, Error{fmt.Sprintf("malformed header line '%s'", str), name, []string{"New"}, true}
		}
		m[k] = v
	}
	S.readable = true
	return S, m, nil
}

func (S *NtfR) readLine() (string, error) {
	s, err := S.h.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	S.line++
	return strings.TrimSuffix(s, "\n"), nil
}

//Readable returns true if Next can be called on the handle.
func (S *NtfR) Readable() bool {
	return S.readable
}

//Len returns the number of atoms in each frame.
func (S *NtfR) Len() int {
	return S.natoms
}

//States returns the number of electronic states in each frame.
func (S *NtfR) States() int {
	return S.nstates
}

func (S *NtfR) frameError(msg, caller string) Error {
	return Error{fmt.Sprintf("line %d: %s", S.line, msg), S.filename, []string{caller}, true}
}

//Next reads the next frame into f. Nil matrices in f are allocated. At the end of the
//file it closes the handle and returns a non-critical error that implements LastFrameError.
//If f is nil, the frame is checked, but discarded.
func (S *NtfR) Next(f *dyn.Frame) error {
	if !S.readable {
		return Error{TrajUnIniRead, S.filename, []string{"Next"}, true}
	}
	str, err := S.readLine()
	if errors.Is(err, io.EOF) {
		S.Close()
		return newlastFrameError(S.filename, "Next")
	} else if err != nil {
		return S.frameError(err.Error(), "Next")
	}
	fields := strings.Fields(str)
	if len(fields) != 6+S.nstates || fields[0] != "*" {
		return S.frameError(WrongFormat+": "+str, "Next")
	}
	if f == nil {
		f = new(dyn.Frame)
	}
	var errs [4]error
	f.Iteration, errs[0] = strconv.Atoi(fields[1])
	var st int
	st, errs[1] = strconv.Atoi(fields[2])
	f.State = namd.State(st)
	f.Energy, errs[2] = strconv.ParseFloat(fields[3], 64)
	f.Kinetic, errs[3] = strconv.ParseFloat(fields[4], 64)
	if err := errors.Join(errs[:]...); err != nil {
		return S.frameError(err.Error(), "Next")
	}
	f.Hop, err = hop.ParseKind(fields[5])
	if err != nil {
		return S.frameError(err.Error(), "Next")
	}
	if len(f.Energies) != S.nstates {
		f.Energies = make([]float64, S.nstates)
	}
	for i, v := range fields[6:] {
		f.Energies[i], err = strconv.ParseFloat(v, 64)
		if err != nil {
			return S.frameError(err.Error(), "Next")
		}
	}
	if f.Coords == nil || f.Coords.NVecs() != S.natoms {
		f.Coords = v3.Zeros(S.natoms)
	}
	if f.Forces == nil || f.Forces.NVecs() != S.natoms {
		f.Forces = v3.Zeros(S.natoms)
	}
	for i := 0; i < S.natoms; i++ {
		str, err := S.readLine()
		if err != nil {
			return S.frameError("truncated frame: "+err.Error(), "Next")
		}
		atom := strings.Fields(str)
		if len(atom) != 6 {
			return S.frameError(WrongFormat+": "+str, "Next")
		}
		for j, v := range atom {
			val, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return S.frameError(err.Error(), "Next")
			}
			if j < 3 {
				f.Coords.Set(i, j, val)
			} else {
				f.Forces.Set(i, j-3, val)
			}
		}
	}
	return nil
}

func (S *NtfR) close() {
	S.dec.Close()
	S.f.Close()
}

//Close closes the handle, and marks it as unreadable.
func (S *NtfR) Close() {
	if !S.readable {
		return
	}
	S.close()
	S.readable = false
}

//ReadAll returns the header and all the frames in the file name.
func ReadAll(name string) (map[string]string, []dyn.Frame, error) {
	r, header, err := New(name)
	if err != nil {
		return nil, nil, errDecorate(err, "ReadAll")
	}
	defer r.Close()
	var frames []dyn.Frame
	for {
		var f dyn.Frame
		err := r.Next(&f)
		if IsLastFrame(err) {
			break
		} else if err != nil {
			return header, frames, errDecorate(err, "ReadAll")
		}
		frames = append(frames, f)
	}
	return header, frames, nil
}

//Sink writes each trajectory of an ensemble to its own NTF file, Dir/Prefix-index.ntf.
type Sink struct {
	Dir    string
	Prefix string
	Header map[string]string //written in every file, together with the trajectory ID and final status
}

//Name returns the file name for trajectory index.
func (K *Sink) Name(index int) string {
	return filepath.Join(K.Dir, fmt.Sprintf("%s-%04d.ntf", K.Prefix, index))
}

//Write writes the history of res.
func (K *Sink) Write(index int, res *dyn.Result) error {
	if res.History == nil || res.History.Len() == 0 {
		return nil
	}
	first := res.History.Frame(0)
	header := map[string]string{
		"id":     res.ID,
		"index":  strconv.Itoa(index),
		"reason": res.Status.Reason.String(),
	}
	for k, v := range K.Header {
		header[k] = v
	}
	w, err := NewWriter(K.Name(index), first.Coords.NVecs(), len(first.Energies), header)
	if err != nil {
		return errDecorate(err, "Sink.Write")
	}
	for _, f := range res.History.Frames() {
		if err := w.WNext(&f); err != nil {
			w.Close()
			return errDecorate(err, "Sink.Write")
		}
	}
	return errDecorate(w.Close(), "Sink.Write")
}
