package grpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/message"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/transport"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/tts"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/worker"
)

const token = "kunthan-voice-01"

type fakeHandler struct {
	alerts   atomic.Int32
	speakErr error
	panics   bool
	last     *message.Alert
}

func (f *fakeHandler) HandleAlert(ctx context.Context, a *message.Alert) *message.Result {
	if f.panics {
		panic("boom")
	}
	f.alerts.Add(1)
	f.last = a
	return &message.Result{OK: true, RequestID: message.RequestID(ctx), Text: "สวัสดี " + a.Symbol}
}

func (f *fakeHandler) Speak(_ context.Context, req *message.SpeakRequest) (*tts.Result, error) {
	if f.speakErr != nil {
		return nil, f.speakErr
	}
	return &tts.Result{Audio: []byte("mp3"), ContentType: tts.MIMEMpeg, Provider: "fake", Voice: req.Voice}, nil
}

func dial(t *testing.T, h transport.Handler) *grpc.ClientConn {
	t.Helper()
	pool, err := worker.New(2)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	tr := New(Options{Token: token, Pool: pool})
	done := make(chan error, 1)
	go func() { done <- tr.Serve(ctx, lis, h) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestAlert_RoundTrip(t *testing.T) {
	h := &fakeHandler{}
	client := NewClient(dial(t, h), token)

	res, err := client.Alert(context.Background(), []byte(`{"symbol":"ptt","timeframe":"4h","close":"34.25","volume":1200}`))
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "สวัสดี PTT", res.Text)
	require.NotNil(t, h.last)
	assert.Equal(t, "4H", h.last.Timeframe)
	assert.Equal(t, "34.25", h.last.Close.String())
}

func TestAlert_RequestIDFromMetadata(t *testing.T) {
	client := NewClient(dial(t, &fakeHandler{}), token)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-request-id", "req-7")
	res, err := client.Alert(ctx, []byte(`{"symbol":"AAA","tf":"D","close":1,"volume":1}`))
	require.NoError(t, err)
	assert.Equal(t, "req-7", res.RequestID)
}

func TestAlert_Unauthorized(t *testing.T) {
	h := &fakeHandler{}
	client := NewClient(dial(t, h), "wrong")

	_, err := client.Alert(context.Background(), []byte(`{"symbol":"AAA","tf":"D","close":1,"volume":1}`))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	assert.Zero(t, h.alerts.Load())
}

func TestAlert_BadPayload(t *testing.T) {
	h := &fakeHandler{}
	client := NewClient(dial(t, h), token)

	_, err := client.Alert(context.Background(), []byte(`{"symbol":"AAA","close":1,"volume":1}`))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Zero(t, h.alerts.Load())
}

func TestAlert_PanicIsInternal(t *testing.T) {
	client := NewClient(dial(t, &fakeHandler{panics: true}), token)

	_, err := client.Alert(context.Background(), []byte(`{"symbol":"AAA","tf":"D","close":1,"volume":1}`))
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestSpeak(t *testing.T) {
	client := NewClient(dial(t, &fakeHandler{}), token)

	res, err := client.Speak(context.Background(), &message.SpeakRequest{Text: "hi", Voice: " Verse "})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), res.Audio)
	assert.Equal(t, "verse", res.Voice)

	_, err = client.Speak(context.Background(), &message.SpeakRequest{Text: " "})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSpeak_ProviderFailure(t *testing.T) {
	client := NewClient(dial(t, &fakeHandler{speakErr: errors.New("down")}), token)

	_, err := client.Speak(context.Background(), &message.SpeakRequest{Text: "hi"})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestHealthServiceNeedsNoToken(t *testing.T) {
	conn := dial(t, &fakeHandler{})

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

type idHandler struct {
	fakeHandler
	seen []string
}

func (h *idHandler) HandleAlert(ctx context.Context, a *message.Alert) *message.Result {
	h.seen = append(h.seen, message.RequestID(ctx), message.RequestID(ctx))
	return &message.Result{OK: true, RequestID: message.RequestID(ctx)}
}

func TestAlert_GeneratedRequestIDIsStable(t *testing.T) {
	h := &idHandler{}
	client := NewClient(dial(t, h), token)

	res, err := client.Alert(context.Background(), []byte(`{"symbol":"AAA","tf":"D","close":1,"volume":1}`))
	require.NoError(t, err)
	require.Len(t, h.seen, 2)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, res.RequestID, h.seen[0])
	assert.Equal(t, h.seen[0], h.seen[1])
}
