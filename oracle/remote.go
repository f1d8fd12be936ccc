/*
 * remote.go, part of goNAMD.
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

package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/rmera/namd"
	"github.com/rmera/namd/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

//The remote oracle protocol is a single unary RPC, /namd.Oracle/Evaluate, which takes and returns
//a google.protobuf.Struct, so a model server in any language can implement it without generated code.
//Request fields: "coords" (3N numbers, Bohr), "symbols" (N strings), "masses" (N numbers)
//and, optionally, "onehot" (N lists). Response fields: "energies" (K numbers, Hartree)
//and "forces" (K lists of 3N numbers, Hartree/Bohr).

const (
	serviceName    = "namd.Oracle"
	evaluateMethod = "/namd.Oracle/Evaluate"
)

//OracleServer is the server side of the remote oracle protocol.
type OracleServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OracleServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Evaluate",
			Handler:    evaluateHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "namd/oracle.proto",
}

func evaluateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OracleServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: evaluateMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OracleServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

//server serves any Oracle through the remote protocol.
type server struct {
	o Oracle
}

func (S *server) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s, err := structureFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	R, err := S.o.Evaluate(ctx, s)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	if err := R.Check(s.Len(), len(R.Energies)); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := resultToStruct(R)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

//Register registers o as the remote oracle service of s.
func Register(s *grpc.Server, o Oracle) {
	s.RegisterService(&serviceDesc, &server{o: o})
}

//NewServer returns a gRPC server that serves o. The caller is in charge
//of Serve and Stop.
func NewServer(o Oracle, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	Register(s, o)
	return s
}

//Remote is an Oracle evaluated by a model server over gRPC.
type Remote struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

//Dial connects to the model server at addr. Without options, the connection is not encrypted.
func Dial(addr string, opts ...grpc.DialOption) (*Remote, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, namd.Decorate(err, namd.ErrOracleFailure, "Dial "+addr)
	}
	return NewRemote(conn), nil
}

//NewRemote uses an existing connection. Closing the Remote closes conn.
func NewRemote(conn *grpc.ClientConn) *Remote {
	return &Remote{conn: conn}
}

//SetTimeout sets a deadline for each evaluation. 0, the default, means no deadline other than the context's.
func (R *Remote) SetTimeout(t time.Duration) { R.timeout = t }

//Evaluate implements Oracle.
func (R *Remote) Evaluate(ctx context.Context, s *Structure) (*Result, error) {
	if R.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, R.timeout)
		defer cancel()
	}
	req, err := structureToStruct(s)
	if err != nil {
		return nil, namd.Decorate(err, namd.ErrOracleFailure, "Remote.Evaluate")
	}
	resp := new(structpb.Struct)
	if err := R.conn.Invoke(ctx, evaluateMethod, req, resp); err != nil {
		return nil, namd.Decorate(err, namd.ErrOracleFailure, "Remote.Evaluate")
	}
	res, err := resultFromStruct(resp, s.Len())
	if err != nil {
		return nil, namd.Decorate(err, namd.ErrOracleFailure, "Remote.Evaluate")
	}
	return res, nil
}

//Close closes the connection to the server.
func (R *Remote) Close() error { return R.conn.Close() }

func floatList(v []float64) []interface{} {
	ret := make([]interface{}, len(v))
	for i, f := range v {
		ret[i] = f
	}
	return ret
}

func listFloats(v *structpb.Value, field string) ([]float64, error) {
	l := v.GetListValue()
	if l == nil {
		return nil, fmt.Errorf("field %q is not a list", field)
	}
	ret := make([]float64, len(l.GetValues()))
	for i, x := range l.GetValues() {
		n, ok := x.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("element %d of %q is not a number", i, field)
		}
		ret[i] = n.NumberValue
	}
	return ret, nil
}

func structureToStruct(s *Structure) (*structpb.Struct, error) {
	symbols := make([]interface{}, len(s.Symbols))
	for i, v := range s.Symbols {
		symbols[i] = v
	}
	m := map[string]interface{}{
		"coords":  floatList(s.Coords.Flat()),
		"symbols": symbols,
		"masses":  floatList(s.Masses),
	}
	if s.OneHot != nil {
		oh := make([]interface{}, len(s.OneHot))
		for i, v := range s.OneHot {
			oh[i] = floatList(v)
		}
		m["onehot"] = oh
	}
	return structpb.NewStruct(m)
}

func structureFromStruct(in *structpb.Struct) (*Structure, error) {
	f := in.GetFields()
	c, err := listFloats(f["coords"], "coords")
	if err != nil {
		return nil, err
	}
	coords, err := v3.NewMatrix(c)
	if err != nil {
		return nil, err
	}
	s := &Structure{Coords: coords}
	s.Masses, err = listFloats(f["masses"], "masses")
	if err != nil {
		return nil, err
	}
	for _, v := range f["symbols"].GetListValue().GetValues() {
		s.Symbols = append(s.Symbols, v.GetStringValue())
	}
	if oh, ok := f["onehot"]; ok {
		for i, v := range oh.GetListValue().GetValues() {
			row, err := listFloats(v, fmt.Sprintf("onehot[%d]", i))
			if err != nil {
				return nil, err
			}
			s.OneHot = append(s.OneHot, row)
		}
	}
	if len(s.Masses) != s.Len() || len(s.Symbols) != s.Len() {
		return nil, fmt.Errorf("%d coordinates, %d masses and %d symbols", s.Len(), len(s.Masses), len(s.Symbols))
	}
	return s, nil
}

func resultToStruct(R *Result) (*structpb.Struct, error) {
	forces := make([]interface{}, len(R.Forces))
	for i, f := range R.Forces {
		forces[i] = floatList(f.Flat())
	}
	return structpb.NewStruct(map[string]interface{}{
		"energies": floatList(R.Energies),
		"forces":   forces,
	})
}

func resultFromStruct(in *structpb.Struct, natoms int) (*Result, error) {
	f := in.GetFields()
	e, err := listFloats(f["energies"], "energies")
	if err != nil {
		return nil, err
	}
	R := &Result{Energies: e}
	for i, v := range f["forces"].GetListValue().GetValues() {
		flat, err := listFloats(v, fmt.Sprintf("forces[%d]", i))
		if err != nil {
			return nil, err
		}
		if len(flat) != 3*natoms {
			return nil, namd.Errorf(namd.ErrShapeMismatch, "resultFromStruct", "forces[%d] has %d components, expected %d", i, len(flat), 3*natoms)
		}
		m, err := v3.NewMatrix(flat)
		if err != nil {
			return nil, err
		}
		R.Forces = append(R.Forces, m)
	}
	return R, nil
}
