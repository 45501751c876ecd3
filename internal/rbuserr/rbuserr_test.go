package rbuserr

import (
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCodeOfUnwrapsError(t *testing.T) {
	err := Newf(NotFound, "missing %s", "Device.Foo")
	if got := CodeOf(err); got != NotFound {
		t.Errorf("CodeOf = %v, want NotFound", got)
	}
}

func TestCodeOfDefaultsToBusErrorForForeignErrors(t *testing.T) {
	foreign := status.Error(codes.Internal, "boom")
	if got := CodeOf(foreign); got != BusError {
		t.Errorf("CodeOf(foreign) = %v, want BusError", got)
	}
}

func TestGRPCStatusMapsCode(t *testing.T) {
	err := Newf(TypeMismatch, "bad type")
	st, ok := status.FromError(err)
	if !ok {
		t.Fatal("expected status.FromError to recognize *Error via GRPCStatus()")
	}
	if st.Code() != codes.InvalidArgument {
		t.Errorf("grpc code = %v, want InvalidArgument", st.Code())
	}
}

func TestCodeOfNilIsSuccess(t *testing.T) {
	if got := CodeOf(nil); got != Success {
		t.Errorf("CodeOf(nil) = %v, want Success", got)
	}
}
