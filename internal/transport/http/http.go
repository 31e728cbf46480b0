// Package http implements the HTTP webhook transport.
//
// It serves POST /coach and POST /coach_dual for chart alerts, POST /tts
// for synthesis-only requests, and the Swagger UI under /swagger/.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "github.com/Bdento-1/coach-dual-cloud-render/docs"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/message"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/metrics"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/transport"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/worker"
)

// Header names accepted on inbound requests.
const (
	HeaderToken     = "X-Webhook-Token"
	HeaderRequestID = "X-Request-ID"
)

const defaultMaxBodyBytes = 64 << 10

// Options configures the HTTP transport.
type Options struct {
	Port         int
	Token        string
	MaxBodyBytes int64
	Pool         *worker.Pool
	Metrics      *metrics.Metrics
}

// Transport serves the webhook API over HTTP.
type Transport struct {
	opts   Options
	server *http.Server
}

// New creates a new HTTP transport.
func New(opts Options) *Transport {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Transport{opts: opts}
}

// Name returns "http".
func (t *Transport) Name() string { return "http" }

// Handler builds the instrumented route table for a handler.
func (t *Transport) Handler(handler transport.Handler) http.Handler {
	mux := http.NewServeMux()

	alert := t.withRequestID(func(w http.ResponseWriter, r *http.Request) {
		t.handleAlert(w, r, handler)
	})
	mux.HandleFunc("POST /coach", alert)
	mux.HandleFunc("POST /coach_dual", alert)
	mux.HandleFunc("POST /tts", t.withRequestID(func(w http.ResponseWriter, r *http.Request) {
		t.handleSpeak(w, r, handler)
	}))

	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return otelhttp.NewHandler(recoverer(mux), "voicecoach.http")
}

// Listen starts the HTTP server. It blocks until the context is cancelled.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.opts.Port),
		Handler:           t.Handler(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("HTTP transport listening", "port", t.opts.Port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server: %w", err)
	}
	return nil
}

// handleAlert processes an incoming chart alert.
//
//	@Summary		Coach a chart alert
//	@Description	Authenticates the webhook, generates policy-filtered commentary and synthesizes it.
//	@Description	POST /coach_dual is an alias with the same contract.
//	@Tags			coach
//	@Accept			json
//	@Produce		json
//	@Param			X-Webhook-Token	header		string			false	"Shared webhook secret"
//	@Param			token			query		string			false	"Shared webhook secret"
//	@Param			alert			body		message.Alert	true	"Chart alert"
//	@Success		200				{object}	message.Result	"Complete or partial (text-only) result"
//	@Failure		400				{object}	message.Result	"Invalid payload"
//	@Failure		403				{object}	message.Result	"Unauthorized"
//	@Failure		500				{object}	message.Result	"Internal error"
//	@Router			/coach [post]
func (t *Transport) handleAlert(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	start := time.Now()
	if !t.authorized(r) {
		t.opts.Metrics.ObserveRequest("unauthorized", time.Since(start))
		writeJSON(w, http.StatusForbidden, message.Failure(transport.ErrMsgUnauthorized))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, t.opts.MaxBodyBytes))
	if err != nil {
		t.opts.Metrics.ObserveRequest("bad_payload", time.Since(start))
		writeJSON(w, http.StatusBadRequest, message.Failure("bad payload: "+err.Error()))
		return
	}
	alert, err := message.DecodeAlert(body)
	if err != nil {
		slog.Warn("rejected alert", "request_id", message.RequestID(r.Context()), "error", err)
		t.opts.Metrics.ObserveRequest("bad_payload", time.Since(start))
		writeJSON(w, http.StatusBadRequest, message.Failure(err.Error()))
		return
	}

	var res *message.Result
	if err := t.run(func() { res = handler.HandleAlert(r.Context(), alert) }); err != nil {
		t.fail(w, r, start, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSpeak synthesizes caller-supplied text and returns raw audio.
//
//	@Summary		Synthesize text
//	@Description	Scrubs and caps the text, then returns MP3 audio from the primary or secondary provider.
//	@Tags			tts
//	@Accept			json
//	@Produce		audio/mpeg
//	@Param			X-Webhook-Token	header		string				false	"Shared webhook secret"
//	@Param			request			body		message.SpeakRequest	true	"Text to speak"
//	@Success		200				{file}		binary				"MP3 audio"
//	@Failure		400				{object}	message.Result		"Invalid payload"
//	@Failure		403				{object}	message.Result		"Unauthorized"
//	@Failure		502				{object}	message.Result		"Both providers failed"
//	@Router			/tts [post]
func (t *Transport) handleSpeak(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	start := time.Now()
	if !t.authorized(r) {
		t.opts.Metrics.ObserveRequest("unauthorized", time.Since(start))
		writeJSON(w, http.StatusForbidden, message.Failure(transport.ErrMsgUnauthorized))
		return
	}

	var req message.SpeakRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, t.opts.MaxBodyBytes)).Decode(&req); err != nil {
		t.opts.Metrics.ObserveRequest("bad_payload", time.Since(start))
		writeJSON(w, http.StatusBadRequest, message.Failure(fmt.Sprintf("%s: %v", message.ErrBadPayload, err)))
		return
	}
	if err := req.Validate(); err != nil {
		t.opts.Metrics.ObserveRequest("bad_payload", time.Since(start))
		writeJSON(w, http.StatusBadRequest, message.Failure(err.Error()))
		return
	}

	var (
		audio    []byte
		mime     string
		speakErr error
	)
	err := t.run(func() {
		res, err := handler.Speak(r.Context(), &req)
		if err != nil {
			speakErr = err
			return
		}
		audio, mime = res.Audio, res.ContentType
	})
	if err != nil {
		t.fail(w, r, start, err)
		return
	}
	if speakErr != nil {
		slog.Error("speak failed", "request_id", message.RequestID(r.Context()), "error", speakErr)
		t.opts.Metrics.ObserveRequest("error", time.Since(start))
		writeJSON(w, http.StatusBadGateway, message.Failure("synthesis failed"))
		return
	}

	t.opts.Metrics.ObserveRequest("ok", time.Since(start))
	w.Header().Set("Content-Type", mime)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

// run executes fn on the worker pool, or inline when none is configured.
func (t *Transport) run(fn func()) error {
	if t.opts.Pool == nil {
		fn()
		return nil
	}
	return t.opts.Pool.Run(fn)
}

func (t *Transport) fail(w http.ResponseWriter, r *http.Request, start time.Time, err error) {
	var pe *worker.PanicError
	if errors.As(err, &pe) {
		slog.Error("handler panicked", "request_id", message.RequestID(r.Context()), "panic", pe.Value, "stack", string(pe.Stack))
	} else {
		slog.Error("handler failed", "request_id", message.RequestID(r.Context()), "error", err)
	}
	t.opts.Metrics.ObserveRequest("error", time.Since(start))
	writeJSON(w, http.StatusInternalServerError, message.Failure(transport.ErrMsgInternal))
}

// authorized accepts the token from the X-Webhook-Token header, a Bearer
// Authorization header or the token query parameter.
func (t *Transport) authorized(r *http.Request) bool {
	presented := r.Header.Get(HeaderToken)
	if presented == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			presented = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if presented == "" {
		presented = r.URL.Query().Get("token")
	}
	return transport.Authorized(t.opts.Token, presented)
}

// withRequestID stores the caller's X-Request-ID, or a fresh one, in the
// request context and echoes it back.
func (t *Transport) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next(w, r.WithContext(message.WithRequestID(r.Context(), id)))
	}
}

// recoverer turns a panic outside the worker pool into a 500.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				slog.Error("panic serving request", "path", r.URL.Path, "panic", v, "stack", string(debug.Stack()))
				writeJSON(w, http.StatusInternalServerError, message.Failure(transport.ErrMsgInternal))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Close shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}
