package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/entities"
	"github.com/satriahrh/speakfix/internal/saga"
	"github.com/satriahrh/speakfix/usecase"
)

type fakeRecorder struct {
	mu       sync.Mutex
	speech   bool
	err      error
	audio    []byte
	uploads  []usecase.AudioUpload
	contents []string

	// entered is signalled and block awaited inside a recording when set
	entered chan struct{}
	block   chan struct{}
}

func (f *fakeRecorder) SpeechEnabled() bool { return f.speech }

func (f *fakeRecorder) record(upload usecase.AudioUpload) (*entities.Correction, error) {
	data, err := io.ReadAll(upload.Content)
	if err != nil {
		return nil, err
	}
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.uploads = append(f.uploads, upload)
	f.contents = append(f.contents, string(data))
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	c := entities.NewCorrection("i has a apple", "I have an apple.", "en")
	return c, nil
}

func (f *fakeRecorder) CorrectRecording(ctx context.Context, upload usecase.AudioUpload) (*usecase.RecordingResult, error) {
	c, err := f.record(upload)
	if err != nil {
		return nil, err
	}
	return &usecase.RecordingResult{Correction: c, SagaID: "correction_text_1"}, nil
}

func (f *fakeRecorder) SpeakCorrection(ctx context.Context, upload usecase.AudioUpload) (*usecase.SpeechResult, error) {
	c, err := f.record(upload)
	if err != nil {
		return nil, err
	}
	return &usecase.SpeechResult{
		RecordingResult: usecase.RecordingResult{Correction: c, SagaID: "correction_speech_1"},
		Audio:           f.audio,
	}, nil
}

func dial(t *testing.T, recorder Recorder, options Options) *websocket.Conn {
	t.Helper()

	e := echo.New()
	e.GET("/ws/transcribe", NewHandler(recorder, options, zap.NewNop()).Handle)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/transcribe"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeJSON(t *testing.T, conn *websocket.Conn, v string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(v)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
}

func writeBinary(t *testing.T, conn *websocket.Conn, data []byte) {
	t.Helper()
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
}

func read(t *testing.T, conn *websocket.Conn) (int, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	return messageType, data
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	messageType, data := read(t, conn)
	if messageType != websocket.TextMessage {
		t.Fatalf("message type = %d, want text", messageType)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid JSON %q: %v", data, err)
	}
	return msg
}

func expectType(t *testing.T, msg map[string]interface{}, want MessageType) {
	t.Helper()
	if msg["type"] != string(want) {
		t.Fatalf("message = %v, want type %s", msg, want)
	}
}

func TestHandler_Ping(t *testing.T) {
	conn := dial(t, &fakeRecorder{}, Options{})

	writeJSON(t, conn, `{"type":"ping","data":"hello"}`)
	msg := readJSON(t, conn)
	expectType(t, msg, MessageTypePong)
	if msg["data"] != "hello" {
		t.Errorf("pong data = %v", msg["data"])
	}
}

func TestHandler_InvalidMessages(t *testing.T) {
	conn := dial(t, &fakeRecorder{}, Options{})

	writeJSON(t, conn, `not json`)
	msg := readJSON(t, conn)
	expectType(t, msg, MessageTypeError)
	if msg["error_code"] != "invalid_message" {
		t.Errorf("error_code = %v", msg["error_code"])
	}

	writeBinary(t, conn, []byte("audio"))
	msg = readJSON(t, conn)
	expectType(t, msg, MessageTypeError)
	if msg["error_code"] != "no_recording" {
		t.Errorf("error_code = %v", msg["error_code"])
	}

	writeJSON(t, conn, `{"type":"end"}`)
	msg = readJSON(t, conn)
	if msg["error_code"] != "no_recording" {
		t.Errorf("error_code = %v", msg["error_code"])
	}
}

func TestHandler_JSONResult(t *testing.T) {
	recorder := &fakeRecorder{}
	conn := dial(t, recorder, Options{})

	writeJSON(t, conn, `{"type":"start","filename":"clip.webm","language":"en-GB"}`)
	msg := readJSON(t, conn)
	expectType(t, msg, MessageTypeStarted)
	if msg["response"] != "json" {
		t.Errorf("response = %v", msg["response"])
	}

	writeBinary(t, conn, []byte("first-"))
	writeBinary(t, conn, []byte("second"))
	writeJSON(t, conn, `{"type":"end"}`)

	msg = readJSON(t, conn)
	expectType(t, msg, MessageTypeResult)
	if msg["original"] != "i has a apple" || msg["corrected"] != "I have an apple." {
		t.Errorf("result = %v", msg)
	}
	if msg["pipeline_id"] != "correction_text_1" {
		t.Errorf("pipeline_id = %v", msg["pipeline_id"])
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.contents) != 1 || recorder.contents[0] != "first-second" {
		t.Errorf("contents = %v", recorder.contents)
	}
	if upload := recorder.uploads[0]; upload.Filename != "clip.webm" || upload.Language != "en-GB" {
		t.Errorf("upload = %+v", upload)
	}
}

func TestHandler_AudioResult(t *testing.T) {
	audio := bytes.Repeat([]byte{1, 2, 3, 4}, audioChunkSize/2+10)
	recorder := &fakeRecorder{speech: true, audio: audio}
	conn := dial(t, recorder, Options{})

	writeJSON(t, conn, `{"type":"start","response":"audio"}`)
	expectType(t, readJSON(t, conn), MessageTypeStarted)

	writeBinary(t, conn, []byte("voice"))
	writeJSON(t, conn, `{"type":"end"}`)

	expectType(t, readJSON(t, conn), MessageTypeResult)

	var received []byte
	for {
		messageType, data := read(t, conn)
		if messageType == websocket.BinaryMessage {
			received = append(received, data...)
			continue
		}
		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("invalid JSON %q: %v", data, err)
		}
		expectType(t, msg, MessageTypeAudioEnd)
		if int(msg["bytes"].(float64)) != len(audio) {
			t.Errorf("bytes = %v, want %d", msg["bytes"], len(audio))
		}
		break
	}

	if !bytes.Equal(received, audio) {
		t.Errorf("received %d bytes, want %d", len(received), len(audio))
	}
}

func TestHandler_AudioModeWithoutSpeech(t *testing.T) {
	conn := dial(t, &fakeRecorder{}, Options{})

	writeJSON(t, conn, `{"type":"start","response":"audio"}`)
	msg := readJSON(t, conn)
	expectType(t, msg, MessageTypeError)
	if msg["error_code"] != "speech_disabled" {
		t.Errorf("error_code = %v", msg["error_code"])
	}
}

func TestHandler_UploadLimit(t *testing.T) {
	conn := dial(t, &fakeRecorder{}, Options{MaxUploadBytes: 4})

	writeJSON(t, conn, `{"type":"start"}`)
	expectType(t, readJSON(t, conn), MessageTypeStarted)

	writeBinary(t, conn, []byte("12345"))
	msg := readJSON(t, conn)
	expectType(t, msg, MessageTypeError)
	if msg["error_code"] != "audio_too_large" {
		t.Errorf("error_code = %v", msg["error_code"])
	}

	// the recording was dropped
	writeJSON(t, conn, `{"type":"end"}`)
	if msg := readJSON(t, conn); msg["error_code"] != "no_recording" {
		t.Errorf("error_code = %v", msg["error_code"])
	}
}

func TestHandler_PipelineError(t *testing.T) {
	recorder := &fakeRecorder{err: &saga.StepError{SagaID: "correction_text_2", StepID: "transcribe", Err: domain.ErrNoSpeech}}
	conn := dial(t, recorder, Options{})

	writeJSON(t, conn, `{"type":"start"}`)
	expectType(t, readJSON(t, conn), MessageTypeStarted)
	writeBinary(t, conn, []byte("silence"))
	writeJSON(t, conn, `{"type":"end"}`)

	msg := readJSON(t, conn)
	expectType(t, msg, MessageTypeError)
	if msg["error_code"] != "no_speech" || msg["pipeline_id"] != "correction_text_2" {
		t.Errorf("error = %v", msg)
	}
}

func TestHandler_CheckOrigin(t *testing.T) {
	h := NewHandler(&fakeRecorder{}, Options{AllowedOrigins: []string{"http://localhost:5173"}}, zaptest.NewLogger(t))

	tests := []struct {
		origin string
		want   bool
	}{
		{origin: "", want: true},
		{origin: "http://localhost:5173", want: true},
		{origin: "http://evil.example.com", want: false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws/transcribe", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := h.checkOrigin(req); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}

	open := NewHandler(&fakeRecorder{}, Options{}, zaptest.NewLogger(t))
	req := httptest.NewRequest(http.MethodGet, "/ws/transcribe", nil)
	req.Header.Set("Origin", "http://anywhere.example.com")
	if !open.checkOrigin(req) {
		t.Error("no configured origins should allow all")
	}
}

func TestHandler_StartWhileProcessing(t *testing.T) {
	recorder := &fakeRecorder{
		entered: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	conn := dial(t, recorder, Options{})
	var release sync.Once
	unblock := func() { release.Do(func() { close(recorder.block) }) }
	t.Cleanup(unblock)

	writeJSON(t, conn, `{"type":"start","filename":"clip.webm"}`)
	expectType(t, readJSON(t, conn), MessageTypeStarted)
	writeBinary(t, conn, []byte("audio"))
	writeJSON(t, conn, `{"type":"end"}`)

	select {
	case <-recorder.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("recording never reached the recorder")
	}

	writeJSON(t, conn, `{"type":"start","filename":"second.webm"}`)
	msg := readJSON(t, conn)
	expectType(t, msg, MessageTypeError)
	if msg["error_code"] != "busy" {
		t.Errorf("error_code = %v, want busy", msg["error_code"])
	}

	unblock()
	expectType(t, readJSON(t, conn), MessageTypeResult)

	writeJSON(t, conn, `{"type":"start","filename":"third.webm"}`)
	expectType(t, readJSON(t, conn), MessageTypeStarted)
}
