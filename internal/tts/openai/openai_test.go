package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/config"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/tts"
)

func TestSynthesize_SendsSpeechRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req speechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini-tts", req.Model)
		assert.Equal(t, "verse", req.Voice)
		assert.Equal(t, "mp3", req.ResponseFormat)
		assert.InDelta(t, 0.85, req.Speed, 1e-9)

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	s := New(config.TTSProviderConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, WithHTTPClient(srv.Client()))
	res, err := s.Synthesize(context.Background(), "สวัสดี", tts.Opts{Voice: "verse", Rate: 0.85})
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-audio"), res.Audio)
	assert.Equal(t, tts.MIMEMpeg, res.ContentType)
	assert.Equal(t, "openai", res.Provider)
}

func TestSynthesize_ErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","code":"rate_limit"}}`))
	}))
	defer srv.Close()

	s := New(config.TTSProviderConfig{BaseURL: srv.URL}, WithHTTPClient(srv.Client()))
	_, err := s.Synthesize(context.Background(), "x", tts.Opts{})
	require.Error(t, err)

	var serr *tts.SynthesisError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "429", serr.Code)
	assert.Equal(t, "slow down", serr.Message)
	assert.True(t, serr.Retryable)
	assert.ErrorIs(t, err, tts.ErrRateLimited)
}

func TestSynthesize_EmptyAudioIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(config.TTSProviderConfig{BaseURL: srv.URL}, WithHTTPClient(srv.Client()))
	_, err := s.Synthesize(context.Background(), "x", tts.Opts{})
	assert.ErrorIs(t, err, tts.ErrSynthesisFailed)
}

func TestClampSpeed(t *testing.T) {
	assert.InDelta(t, 0, clampSpeed(0), 0)
	assert.InDelta(t, 0.25, clampSpeed(0.1), 0)
	assert.InDelta(t, 4.0, clampSpeed(9), 0)
	assert.InDelta(t, 1.15, clampSpeed(1.15), 0)
}
