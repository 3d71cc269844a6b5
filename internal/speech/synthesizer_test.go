package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type captureSink struct {
	writes [][]byte
	err    error
}

func (c *captureSink) WriteAudio(payload []byte) error {
	if c.err != nil {
		return c.err
	}
	c.writes = append(c.writes, payload)
	return nil
}

func TestSynthesizeSendsOpenAISpeechRequest(t *testing.T) {
	var gotAuth string
	var gotReq map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("expected /v1/audio/speech path, got %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte("pcm-bytes"))
	}))
	defer srv.Close()

	client := NewSynthesisClient(srv.URL, "sk-test", "tts-1", "alloy", 2)
	audio, err := client.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("expected synthesis to succeed, got error: %v", err)
	}
	if !bytes.Equal(audio, []byte("pcm-bytes")) {
		t.Fatalf("expected response body as audio, got %q", audio)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotReq["input"] != "hello" || gotReq["model"] != "tts-1" || gotReq["voice"] != "alloy" {
		t.Fatalf("expected request fields to carry config, got %v", gotReq)
	}
	if gotReq["response_format"] != "pcm" {
		t.Fatalf("expected pcm response format, got %q", gotReq["response_format"])
	}
}

func TestSynthesizeNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewSynthesisClient(srv.URL, "", "tts-1", "alloy", 2)
	if _, err := client.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestSpeakerWritesAudioToSink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	sink := &captureSink{}
	speaker := NewSpeaker(NewSynthesisClient(srv.URL, "", "tts-1", "alloy", 2), sink)

	if err := speaker.Speak(context.Background(), "hi"); err != nil {
		t.Fatalf("expected speak to succeed, got error: %v", err)
	}
	if len(sink.writes) != 1 || !bytes.Equal(sink.writes[0], []byte("audio")) {
		t.Fatalf("expected one sink write with the audio, got %v", sink.writes)
	}
}

func TestSpeakerSurfacesSinkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	sink := &captureSink{err: errors.New("socket closed")}
	speaker := NewSpeaker(NewSynthesisClient(srv.URL, "", "tts-1", "alloy", 2), sink)

	if err := speaker.Speak(context.Background(), "hi"); err == nil {
		t.Fatal("expected sink failure to surface")
	}
}
