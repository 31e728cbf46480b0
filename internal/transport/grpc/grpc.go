// Package grpc implements the gRPC transport.
//
// The Coach service is declared by hand and carried with a JSON codec, so
// callers send the same alert bodies they would POST to the webhook. The
// shared token travels in the x-webhook-token metadata key. The standard
// grpc.health.v1 service is registered alongside.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/message"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/transport"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/worker"
)

// Service and method names.
const (
	ServiceName    = "voicecoach.v1.Coach"
	MethodAlert    = "/" + ServiceName + "/Alert"
	MethodSpeak    = "/" + ServiceName + "/Speak"
	MetadataToken  = "x-webhook-token"
	CodecName      = "json"
	servicePrefix  = "/" + ServiceName + "/"
	requestIDKey   = "x-request-id"
	synthFailedMsg = "synthesis failed"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec marshals messages with encoding/json.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

// RawAlert holds the undecoded alert JSON so it goes through the same schema
// validation as the webhook body.
type RawAlert []byte

// MarshalJSON returns the raw bytes.
func (r RawAlert) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// UnmarshalJSON copies the raw bytes.
func (r *RawAlert) UnmarshalJSON(b []byte) error {
	*r = append((*r)[:0], b...)
	return nil
}

// SpeakResponse carries synthesized audio. Audio is base64 on the wire.
type SpeakResponse struct {
	Audio       []byte `json:"audio"`
	ContentType string `json:"content_type"`
	Provider    string `json:"provider"`
	Voice       string `json:"voice"`
}

// CoachServer is the server API for the Coach service.
type CoachServer interface {
	Alert(ctx context.Context, in *RawAlert) (*message.Result, error)
	Speak(ctx context.Context, in *message.SpeakRequest) (*SpeakResponse, error)
}

var coachServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CoachServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Alert", Handler: alertHandler},
		{MethodName: "Speak", Handler: speakHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "voicecoach/v1/coach.proto",
}

func alertHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RawAlert)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoachServer).Alert(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodAlert}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CoachServer).Alert(ctx, req.(*RawAlert))
	})
}

func speakHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(message.SpeakRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoachServer).Speak(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodSpeak}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CoachServer).Speak(ctx, req.(*message.SpeakRequest))
	})
}

// Options configures the gRPC transport.
type Options struct {
	Port  int
	Token string
	Pool  *worker.Pool
}

// Transport serves the Coach service over gRPC.
type Transport struct {
	opts   Options
	server *grpc.Server
	health *health.Server
}

// New creates a new gRPC transport.
func New(opts Options) *Transport {
	return &Transport{opts: opts}
}

// Name returns "grpc".
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server on the configured port.
// It blocks until the context is cancelled.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.opts.Port))
	if err != nil {
		return fmt.Errorf("gRPC listen on port %d: %w", t.opts.Port, err)
	}
	slog.Info("gRPC transport listening", "port", t.opts.Port)
	return t.Serve(ctx, lis, handler)
}

// Serve runs the server on an existing listener until ctx is cancelled.
func (t *Transport) Serve(ctx context.Context, lis net.Listener, handler transport.Handler) error {
	t.server = grpc.NewServer(
		grpc.ChainUnaryInterceptor(t.recoverInterceptor, t.authInterceptor),
	)
	t.server.RegisterService(&coachServiceDesc, &coachServer{handler: handler, pool: t.opts.Pool})

	t.health = health.NewServer()
	t.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(t.server, t.health)

	go func() {
		<-ctx.Done()
		t.health.Shutdown()
		t.server.GracefulStop()
	}()

	if err := t.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("gRPC serve: %w", err)
	}
	return nil
}

// authInterceptor rejects Coach calls without the shared token and pins the
// request ID (x-request-id, or a fresh one) in the context. Health checks
// pass through.
func (t *Transport) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !strings.HasPrefix(info.FullMethod, servicePrefix) {
		return handler(ctx, req)
	}
	md, _ := metadata.FromIncomingContext(ctx)
	var presented string
	if v := md.Get(MetadataToken); len(v) > 0 {
		presented = v[0]
	}
	if !transport.Authorized(t.opts.Token, presented) {
		return nil, status.Error(codes.PermissionDenied, transport.ErrMsgUnauthorized)
	}
	id := uuid.NewString()
	if v := md.Get(requestIDKey); len(v) > 0 && v[0] != "" {
		id = v[0]
	}
	return handler(message.WithRequestID(ctx, id), req)
}

func (t *Transport) recoverInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if v := recover(); v != nil {
			slog.Error("panic in gRPC handler", "method", info.FullMethod, "panic", v)
			resp, err = nil, status.Error(codes.Internal, transport.ErrMsgInternal)
		}
	}()
	return handler(ctx, req)
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}

// coachServer adapts a transport.Handler to CoachServer.
type coachServer struct {
	handler transport.Handler
	pool    *worker.Pool
}

func (s *coachServer) Alert(ctx context.Context, in *RawAlert) (*message.Result, error) {
	a, err := message.DecodeAlert(*in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var res *message.Result
	if err := s.run(func() { res = s.handler.HandleAlert(ctx, a) }); err != nil {
		return nil, internalError(err)
	}
	return res, nil
}

func (s *coachServer) Speak(ctx context.Context, in *message.SpeakRequest) (*SpeakResponse, error) {
	if err := in.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var (
		out      *SpeakResponse
		speakErr error
	)
	if err := s.run(func() {
		res, err := s.handler.Speak(ctx, in)
		if err != nil {
			speakErr = err
			return
		}
		out = &SpeakResponse{Audio: res.Audio, ContentType: res.ContentType, Provider: res.Provider, Voice: res.Voice}
	}); err != nil {
		return nil, internalError(err)
	}
	if speakErr != nil {
		slog.Error("speak failed", "request_id", message.RequestID(ctx), "error", speakErr)
		return nil, status.Error(codes.Unavailable, synthFailedMsg)
	}
	return out, nil
}

func (s *coachServer) run(fn func()) error {
	if s.pool == nil {
		fn()
		return nil
	}
	return s.pool.Run(fn)
}

func internalError(err error) error {
	slog.Error("gRPC handler failed", "error", err)
	return status.Error(codes.Internal, transport.ErrMsgInternal)
}

// Client calls the Coach service over an existing connection.
type Client struct {
	conn  grpc.ClientConnInterface
	token string
}

// NewClient wraps conn. Every call carries token in the metadata.
func NewClient(conn grpc.ClientConnInterface, token string) *Client {
	return &Client{conn: conn, token: token}
}

// Alert sends raw alert JSON.
func (c *Client) Alert(ctx context.Context, alert []byte) (*message.Result, error) {
	in := RawAlert(alert)
	out := new(message.Result)
	if err := c.conn.Invoke(c.outgoing(ctx), MethodAlert, &in, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

// Speak synthesizes text.
func (c *Client) Speak(ctx context.Context, req *message.SpeakRequest) (*SpeakResponse, error) {
	out := new(SpeakResponse)
	if err := c.conn.Invoke(c.outgoing(ctx), MethodSpeak, req, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, MetadataToken, c.token)
}
