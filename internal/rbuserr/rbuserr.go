// Package rbuserr implements the error taxonomy every subsystem returns
// through the bus boundary: a closed set of Codes mapped straight onto
// grpc/codes so the gRPC bus transport never has to guess a status.
package rbuserr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code is the closed set of error conditions a bus callback can report.
type Code uint8

const (
	Success Code = iota
	InvalidName
	NotFound
	DuplicateAlias
	TypeMismatch
	OutOfRange
	OutOfResources
	BusError
)

func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case InvalidName:
		return "invalid_name"
	case NotFound:
		return "not_found"
	case DuplicateAlias:
		return "duplicate_alias"
	case TypeMismatch:
		return "type_mismatch"
	case OutOfRange:
		return "out_of_range"
	case OutOfResources:
		return "out_of_resources"
	case BusError:
		return "bus_error"
	default:
		return "unknown"
	}
}

// grpcCode maps a Code onto the grpc/codes constant a bus transport
// should surface to its caller.
func (c Code) grpcCode() codes.Code {
	switch c {
	case Success:
		return codes.OK
	case InvalidName:
		return codes.InvalidArgument
	case NotFound:
		return codes.NotFound
	case DuplicateAlias:
		return codes.AlreadyExists
	case TypeMismatch:
		return codes.InvalidArgument
	case OutOfRange:
		return codes.OutOfRange
	case OutOfResources:
		return codes.ResourceExhausted
	case BusError:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}

// Error is a Code carrying a formatted message, satisfying the standard
// error interface and unwrapping to nothing further: it is always a
// leaf in the chain, produced at the point a rule is violated.
type Error struct {
	Code Code
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Newf constructs an *Error with Code c and a formatted message.
func Newf(c Code, format string, args ...any) *Error {
	return &Error{Code: c, msg: fmt.Sprintf("%s: %s", c, fmt.Sprintf(format, args...))}
}

// CodeOf extracts the Code carried by err, or BusError if err does not
// wrap an *Error; any error escaping a subsystem without a taxonomy
// code still needs a transport status.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return BusError
}

// GRPCStatus implements the interface grpc/status.FromError looks for,
// letting an *Error cross a gRPC boundary without manual translation at
// every call site.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Code.grpcCode(), e.msg)
}
