// Package grpctrace traces gRPC calls with linkz.
//
// Client interceptors record outgoing remote calls and send the string tag in
// the x-dynatrace metadata entry. Server interceptors record incoming remote
// calls and continue the caller's trace from that entry.
package grpctrace

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/zoobzio/linkz"
)

const (
	// MetadataKey carries the string tag. gRPC metadata keys are lower case.
	MetadataKey = "x-dynatrace"
	// ProtocolName is recorded as the remote call protocol.
	ProtocolName = "gRPC"
)

// UnaryClientInterceptor traces unary calls made through a client connection.
func UnaryClientInterceptor(sdk *linkz.SDK) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		h := startClient(sdk, method, cc)
		if h == linkz.TracerHandle(linkz.InvalidHandle) {
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		defer sdk.End(h)

		err := invoker(outgoingContext(ctx, sdk, h), method, req, reply, cc, opts...)
		recordError(sdk, h, err)
		return err
	}
}

// StreamClientInterceptor traces stream establishment. Messages exchanged on
// the stream afterwards are not part of the traced call.
func StreamClientInterceptor(sdk *linkz.SDK) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		h := startClient(sdk, method, cc)
		if h == linkz.TracerHandle(linkz.InvalidHandle) {
			return streamer(ctx, desc, cc, method, opts...)
		}
		defer sdk.End(h)

		cs, err := streamer(outgoingContext(ctx, sdk, h), desc, cc, method, opts...)
		recordError(sdk, h, err)
		return cs, err
	}
}

// UnaryServerInterceptor traces unary calls served by a server.
func UnaryServerInterceptor(sdk *linkz.SDK) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		h := startServer(ctx, sdk, info.FullMethod)
		if h == linkz.TracerHandle(linkz.InvalidHandle) {
			return handler(ctx, req)
		}
		defer sdk.End(h)

		resp, err := handler(ctx, req)
		recordError(sdk, h, err)
		return resp, err
	}
}

// StreamServerInterceptor traces streaming calls served by a server. The
// handler must not hand tracing work to other goroutines without a link.
func StreamServerInterceptor(sdk *linkz.SDK) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		h := startServer(ss.Context(), sdk, info.FullMethod)
		if h == linkz.TracerHandle(linkz.InvalidHandle) {
			return handler(srv, ss)
		}
		defer sdk.End(h)

		err := handler(srv, ss)
		recordError(sdk, h, err)
		return err
	}
}

func startClient(sdk *linkz.SDK, fullMethod string, cc *grpc.ClientConn) linkz.TracerHandle {
	service, method := splitMethod(fullMethod)
	target := service
	if cc != nil && cc.Target() != "" {
		target = cc.Target()
	}

	h := sdk.CreateOutgoingRemoteCallTracer(method, service, target, channelFor(target))
	if h == linkz.TracerHandle(linkz.InvalidHandle) {
		return h
	}
	sdk.SetProtocolName(h, ProtocolName)
	sdk.Start(h)
	return h
}

func outgoingContext(ctx context.Context, sdk *linkz.SDK, h linkz.TracerHandle) context.Context {
	if tag := sdk.OutgoingStringTag(h); tag != "" {
		return metadata.AppendToOutgoingContext(ctx, MetadataKey, tag)
	}
	return ctx
}

func startServer(ctx context.Context, sdk *linkz.SDK, fullMethod string) linkz.TracerHandle {
	service, method := splitMethod(fullMethod)
	endpoint := service
	if p, ok := peer.FromContext(ctx); ok && p.LocalAddr != nil {
		endpoint = p.LocalAddr.String()
	}

	h := sdk.CreateIncomingRemoteCallTracer(method, service, endpoint)
	if h == linkz.TracerHandle(linkz.InvalidHandle) {
		return h
	}
	sdk.SetProtocolName(h, ProtocolName)
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(MetadataKey); len(values) > 0 {
			sdk.SetIncomingStringTag(h, values[0])
		}
	}
	sdk.Start(h)
	return h
}

// recordError stores the gRPC status code as the error class.
func recordError(sdk *linkz.SDK, h linkz.TracerHandle, err error) {
	if err == nil {
		return
	}
	st := status.Convert(err)
	sdk.Error(h, st.Code().String(), st.Message())
}

// splitMethod splits "/package.Service/Method".
func splitMethod(fullMethod string) (service, method string) {
	name := strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "unknown", name
}

func channelFor(target string) linkz.Channel {
	switch {
	case strings.HasPrefix(target, "unix:"), strings.HasPrefix(target, "unix-abstract:"):
		return linkz.Channel{Type: linkz.ChannelUnixDomainSocket, Endpoint: target}
	case strings.HasPrefix(target, "passthrough:"), strings.HasPrefix(target, "bufnet"):
		return linkz.Channel{Type: linkz.ChannelOther, Endpoint: target}
	default:
		return linkz.Channel{Type: linkz.ChannelTCPIP, Endpoint: target}
	}
}
