package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/internal/config"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeStart    MessageType = "start"
	MessageTypeEnd      MessageType = "end"
	MessageTypePing     MessageType = "ping"
	MessageTypePong     MessageType = "pong"
	MessageTypeStarted  MessageType = "started"
	MessageTypeResult   MessageType = "result"
	MessageTypeAudioEnd MessageType = "audio_end"
	MessageTypeError    MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// StartMessage opens a recording. Binary frames that follow are its audio.
type StartMessage struct {
	BaseMessage
	Filename string `json:"filename,omitempty"`
	Language string `json:"language,omitempty"`
	Response string `json:"response,omitempty"`
}

// EndMessage closes the recording and runs the correction
type EndMessage struct {
	BaseMessage
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// StartedMessage acknowledges a start message
type StartedMessage struct {
	BaseMessage
	Response string `json:"response"`
}

// ResultMessage carries the correction of a finished recording
type ResultMessage struct {
	BaseMessage
	domain.TranscriptionResponse
}

// AudioEndMessage follows the binary WAV frames of a spoken correction
type AudioEndMessage struct {
	BaseMessage
	Bytes int `json:"bytes"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	PipelineID string `json:"pipeline_id,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses and validates an incoming text message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeStart:
		var msg StartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid start message: %w", err)
		}
		if err := v.validateStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeEnd:
		return &EndMessage{BaseMessage: base}, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message type is required")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateStart validates start message fields
func (v *MessageValidator) validateStart(msg *StartMessage) error {
	msg.Response = strings.ToLower(strings.TrimSpace(msg.Response))
	switch msg.Response {
	case "", config.ResponseJSON, config.ResponseAudio:
	default:
		return fmt.Errorf("response must be one of: json, audio")
	}
	if len(msg.Filename) > 255 {
		return fmt.Errorf("filename is too long")
	}
	return nil
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().Format(time.RFC3339)}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, pipelineID string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		PipelineID:  pipelineID,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}

// CreateResultMessage wraps a transcription response
func CreateResultMessage(resp domain.TranscriptionResponse) *ResultMessage {
	return &ResultMessage{
		BaseMessage:           newBase(MessageTypeResult),
		TranscriptionResponse: resp,
	}
}
