package bus

import (
	"context"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/stepherg/rbus-elements/internal/dispatch"
	"github.com/stepherg/rbus-elements/internal/value"
)

// grpcBus is the production Provider: it serves the six inbound
// callbacks over its own grpc.Server (the external bus daemon dials in
// to deliver on_get..on_subscribe) and drives the six outbound
// operations as a grpc client against the daemon's control service.
// No .proto-generated stubs exist in this repository, so request and
// response envelopes travel through jsonCodec instead of protobuf;
// grpc-go's encoding.Codec interface is built precisely to allow this.
type grpcBus struct {
	callbackAddr string
	daemonAddr   string

	mu      sync.Mutex
	handler CallbackHandler
	server  *grpc.Server
	conn    *grpc.ClientConn
}

// NewGRPC returns a Provider that listens for bus callbacks on
// callbackAddr and dials the bus daemon's control service at
// daemonAddr.
func NewGRPC(callbackAddr, daemonAddr string) Provider {
	return &grpcBus{callbackAddr: callbackAddr, daemonAddr: daemonAddr}
}

const callbackServiceName = "/rbuselements.Callback/"
const controlServiceName = "/rbuselements.Control/"

func callbackMethod(m string) string { return callbackServiceName + m }
func controlMethod(m string) string  { return controlServiceName + m }

func (b *grpcBus) Open(componentName string, handler CallbackHandler) error {
	if handler == nil {
		return fmt.Errorf("bus: Open requires a non-nil handler")
	}

	lis, err := net.Listen("tcp", b.callbackAddr)
	if err != nil {
		return fmt.Errorf("bus: listen %s: %w", b.callbackAddr, err)
	}
	srv := grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	srv.RegisterService(&callbackServiceDesc, &callbackServer{handler: handler})
	go srv.Serve(lis) //nolint:errcheck // Serve returns on GracefulStop, nothing to report

	conn, err := grpc.NewClient(b.daemonAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		srv.Stop()
		return fmt.Errorf("bus: dial %s: %w", b.daemonAddr, err)
	}

	openReq := &openRequest{Component: componentName, CallbackAddr: b.callbackAddr}
	if err := conn.Invoke(context.Background(), controlMethod("Open"), openReq, &openResponse{}, grpc.ForceCodec(jsonCodec{})); err != nil {
		conn.Close()
		srv.Stop()
		return fmt.Errorf("bus: open %q against %s: %w", componentName, b.daemonAddr, err)
	}

	b.mu.Lock()
	b.handler, b.server, b.conn = handler, srv, conn
	b.mu.Unlock()
	return nil
}

func (b *grpcBus) clientConn() *grpc.ClientConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

func (b *grpcBus) RegisterElements(elements []ElementDescriptor) error {
	conn := b.clientConn()
	if conn == nil {
		return fmt.Errorf("bus: RegisterElements called before Open")
	}
	req := &registerElementsRequest{Elements: make([]wireElementDescriptor, len(elements))}
	for i, e := range elements {
		req.Elements[i] = wireElementDescriptor{Name: e.Name, Kind: uint8(e.Kind)}
	}
	return conn.Invoke(context.Background(), controlMethod("RegisterElements"), req, &registerElementsResponse{}, grpc.ForceCodec(jsonCodec{}))
}

func (b *grpcBus) UnregisterElements(names []string) error {
	conn := b.clientConn()
	if conn == nil {
		return fmt.Errorf("bus: UnregisterElements called before Open")
	}
	req := &unregisterElementsRequest{Names: names}
	return conn.Invoke(context.Background(), controlMethod("UnregisterElements"), req, &unregisterElementsResponse{}, grpc.ForceCodec(jsonCodec{}))
}

func (b *grpcBus) PublishEvent(name string, kind dispatch.EventKind, payload map[string]value.Value) error {
	conn := b.clientConn()
	if conn == nil {
		return fmt.Errorf("bus: PublishEvent called before Open")
	}
	req := &publishEventRequest{Name: name, Kind: string(kind), Payload: toWireMap(payload)}
	return conn.Invoke(context.Background(), controlMethod("PublishEvent"), req, &publishEventResponse{}, grpc.ForceCodec(jsonCodec{}))
}

func (b *grpcBus) Set(name string, v value.Value) error {
	conn := b.clientConn()
	if conn == nil {
		return fmt.Errorf("bus: Set called before Open")
	}
	req := &controlSetRequest{Name: name, Value: toWire(v), Commit: true}
	return conn.Invoke(context.Background(), controlMethod("Set"), req, &controlSetResponse{}, grpc.ForceCodec(jsonCodec{}))
}

func (b *grpcBus) Close() error {
	b.mu.Lock()
	conn, srv := b.conn, b.server
	b.conn, b.server, b.handler = nil, nil, nil
	b.mu.Unlock()

	var firstErr error
	if conn != nil {
		if err := conn.Invoke(context.Background(), controlMethod("Close"), &closeRequest{}, &closeResponse{}, grpc.ForceCodec(jsonCodec{})); err != nil {
			firstErr = err
		}
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if srv != nil {
		srv.GracefulStop()
	}
	return firstErr
}

// --- inbound callback service: grpc-invoked, core-served ---

type callbackServer struct {
	handler CallbackHandler
}

type getRequest struct{ Name string }
type getResponse struct{ Value wireValue }

type setRequest struct {
	Name  string
	Value wireValue
}
type setResponse struct{}

type addRowRequest struct{ Table, Alias string }
type addRowResponse struct{ Instance uint32 }

type removeRowRequest struct{ RowName string }
type removeRowResponse struct{}

type invokeRequest struct {
	Method string
	In     map[string]wireValue
}
type invokeResponse struct{ Out map[string]wireValue }

type subscribeRequest struct {
	Name   string
	Action int32
}
type subscribeResponse struct{ AutoPublish bool }

func callbackGetHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(getRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		r := req.(*getRequest)
		v, err := srv.(*callbackServer).handler.Get(r.Name)
		if err != nil {
			return nil, err
		}
		return &getResponse{Value: toWire(v)}, nil
	}
	if interceptor == nil {
		return run(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: callbackMethod("Get")}
	return interceptor(ctx, req, info, run)
}

func callbackSetHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(setRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		r := req.(*setRequest)
		if err := srv.(*callbackServer).handler.Set(r.Name, fromWire(r.Value)); err != nil {
			return nil, err
		}
		return &setResponse{}, nil
	}
	if interceptor == nil {
		return run(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: callbackMethod("Set")}
	return interceptor(ctx, req, info, run)
}

func callbackAddRowHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(addRowRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		r := req.(*addRowRequest)
		instance, err := srv.(*callbackServer).handler.AddRow(r.Table, r.Alias)
		if err != nil {
			return nil, err
		}
		return &addRowResponse{Instance: instance}, nil
	}
	if interceptor == nil {
		return run(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: callbackMethod("AddRow")}
	return interceptor(ctx, req, info, run)
}

func callbackRemoveRowHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(removeRowRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		r := req.(*removeRowRequest)
		if err := srv.(*callbackServer).handler.RemoveRow(r.RowName); err != nil {
			return nil, err
		}
		return &removeRowResponse{}, nil
	}
	if interceptor == nil {
		return run(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: callbackMethod("RemoveRow")}
	return interceptor(ctx, req, info, run)
}

func callbackInvokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(invokeRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		r := req.(*invokeRequest)
		out, err := srv.(*callbackServer).handler.Invoke(r.Method, fromWireMap(r.In))
		if err != nil {
			return nil, err
		}
		return &invokeResponse{Out: toWireMap(out)}, nil
	}
	if interceptor == nil {
		return run(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: callbackMethod("Invoke")}
	return interceptor(ctx, req, info, run)
}

func callbackSubscribeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(subscribeRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		r := req.(*subscribeRequest)
		autoPublish, err := srv.(*callbackServer).handler.Subscribe(r.Name, dispatch.SubscribeAction(r.Action))
		if err != nil {
			return nil, err
		}
		return &subscribeResponse{AutoPublish: autoPublish}, nil
	}
	if interceptor == nil {
		return run(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: callbackMethod("Subscribe")}
	return interceptor(ctx, req, info, run)
}

var callbackServiceDesc = grpc.ServiceDesc{
	ServiceName: "rbuselements.Callback",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: callbackGetHandler},
		{MethodName: "Set", Handler: callbackSetHandler},
		{MethodName: "AddRow", Handler: callbackAddRowHandler},
		{MethodName: "RemoveRow", Handler: callbackRemoveRowHandler},
		{MethodName: "Invoke", Handler: callbackInvokeHandler},
		{MethodName: "Subscribe", Handler: callbackSubscribeHandler},
	},
}

// --- outbound control envelopes: grpc-invoked, daemon-served ---

type openRequest struct{ Component, CallbackAddr string }
type openResponse struct{}

type wireElementDescriptor struct {
	Name string
	Kind uint8
}
type registerElementsRequest struct{ Elements []wireElementDescriptor }
type registerElementsResponse struct{}

type unregisterElementsRequest struct{ Names []string }
type unregisterElementsResponse struct{}

type publishEventRequest struct {
	Name    string
	Kind    string
	Payload map[string]wireValue
}
type publishEventResponse struct{}

type controlSetRequest struct {
	Name   string
	Value  wireValue
	Commit bool
}
type controlSetResponse struct{}

type closeRequest struct{}
type closeResponse struct{}
