package websocket

import (
	"encoding/json"
	"testing"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/entities"
)

func TestMessageValidator_ValidateMessage(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		message string
		want    interface{}
		wantErr bool
	}{
		{
			name:    "start with defaults",
			message: `{"type": "start"}`,
			want:    &StartMessage{},
		},
		{
			name:    "start with fields",
			message: `{"type": "start", "filename": "clip.webm", "language": "en-US", "response": "AUDIO"}`,
			want:    &StartMessage{},
		},
		{
			name:    "start with invalid response",
			message: `{"type": "start", "response": "xml"}`,
			wantErr: true,
		},
		{
			name:    "end",
			message: `{"type": "end"}`,
			want:    &EndMessage{},
		},
		{
			name:    "ping",
			message: `{"type": "ping", "data": "hello"}`,
			want:    &PingMessage{},
		},
		{
			name:    "missing type",
			message: `{"data": "hello"}`,
			wantErr: true,
		},
		{
			name:    "unsupported type",
			message: `{"type": "audio_chunk"}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			message: `{"type": `,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			switch tt.want.(type) {
			case *StartMessage:
				if _, ok := got.(*StartMessage); !ok {
					t.Errorf("got %T, want *StartMessage", got)
				}
			case *EndMessage:
				if _, ok := got.(*EndMessage); !ok {
					t.Errorf("got %T, want *EndMessage", got)
				}
			case *PingMessage:
				if _, ok := got.(*PingMessage); !ok {
					t.Errorf("got %T, want *PingMessage", got)
				}
			}
		})
	}
}

func TestMessageValidator_NormalizesResponse(t *testing.T) {
	got, err := NewMessageValidator().ValidateMessage([]byte(`{"type":"start","response":" Audio "}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}
	if msg := got.(*StartMessage); msg.Response != "audio" {
		t.Errorf("Response = %q, want audio", msg.Response)
	}
}

func TestCreateMessages(t *testing.T) {
	errMsg := CreateErrorMessage("no_speech", "no speech detected in audio", "p-1")
	data, err := json.Marshal(errMsg)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if decoded["type"] != "error" || decoded["error_code"] != "no_speech" || decoded["pipeline_id"] != "p-1" {
		t.Errorf("error message = %s", data)
	}
	if decoded["timestamp"] == "" {
		t.Error("timestamp missing")
	}

	pong := CreatePongMessage("hello")
	if pong.Type != MessageTypePong || pong.Data != "hello" {
		t.Errorf("pong = %+v", pong)
	}

	c := entities.NewCorrection("i has a apple", "I have an apple.", "en")
	result := CreateResultMessage(domain.NewTranscriptionResponse(c, "p-2"))
	data, err = json.Marshal(result)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	decoded = nil
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if decoded["type"] != "result" || decoded["corrected"] != "I have an apple." || decoded["pipeline_id"] != "p-2" {
		t.Errorf("result message = %s", data)
	}
}
