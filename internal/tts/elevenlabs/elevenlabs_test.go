package elevenlabs

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

func TestSynthesize_SendsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/bella", r.URL.Path)
		assert.Equal(t, "mp3_44100_128", r.URL.Query().Get("output_format"))
		assert.Equal(t, "xi-test", r.Header.Get("xi-api-key"))
		assert.Equal(t, "audio/mpeg", r.Header.Get("Accept"))

		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "eleven_multilingual_v2", req.ModelID)
		require.NotNil(t, req.VoiceSettings)
		assert.InDelta(t, 0.7, req.VoiceSettings.Speed, 1e-9)

		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	s := New(config.TTSProviderConfig{APIKey: "xi-test", BaseURL: srv.URL + "/v1/"}, WithHTTPClient(srv.Client()))
	res, err := s.Synthesize(context.Background(), "สวัสดี", tts.Opts{Voice: "bella", Rate: 0.5})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), res.Audio)
	assert.Equal(t, "bella", res.Voice)
	assert.Equal(t, "elevenlabs", res.Provider)
}

func TestSynthesize_DefaultVoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text-to-speech/"+DefaultVoice, r.URL.Path)
		_, _ = w.Write([]byte("a"))
	}))
	defer srv.Close()

	s := New(config.TTSProviderConfig{BaseURL: srv.URL}, WithHTTPClient(srv.Client()))
	res, err := s.Synthesize(context.Background(), "x", tts.Opts{})
	require.NoError(t, err)
	assert.Equal(t, DefaultVoice, res.Voice)
}

func TestSynthesize_UnknownVoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":{"status":"voice_not_found","message":"voice does not exist"}}`))
	}))
	defer srv.Close()

	s := New(config.TTSProviderConfig{BaseURL: srv.URL}, WithHTTPClient(srv.Client()))
	_, err := s.Synthesize(context.Background(), "x", tts.Opts{Voice: "nope"})
	require.Error(t, err)

	var serr *tts.SynthesisError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "voice_not_found", serr.Code)
	assert.False(t, serr.Retryable)
	assert.ErrorIs(t, err, tts.ErrInvalidVoice)
}
