package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/internal/api"
	"github.com/satriahrh/speakfix/internal/config"
	"github.com/satriahrh/speakfix/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024

	// Size of the binary frames the spoken correction is sent in.
	audioChunkSize = 32 * 1024

	sendBufferSize = 256
)

// Recorder runs the correction pipelines for a finished recording
type Recorder interface {
	SpeechEnabled() bool
	CorrectRecording(ctx context.Context, upload usecase.AudioUpload) (*usecase.RecordingResult, error)
	SpeakCorrection(ctx context.Context, upload usecase.AudioUpload) (*usecase.SpeechResult, error)
}

var _ Recorder = (*usecase.CorrectionService)(nil)

// Options configure the streaming endpoint
type Options struct {
	MaxUploadBytes int64
	ResponseMode   string
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// Handler upgrades /ws/transcribe connections
type Handler struct {
	service   Recorder
	options   Options
	upgrader  websocket.Upgrader
	validator *MessageValidator
	logger    *zap.Logger
}

// NewHandler creates a new streaming handler
func NewHandler(service Recorder, options Options, logger *zap.Logger) *Handler {
	if options.ResponseMode == "" {
		options.ResponseMode = config.ResponseJSON
	}
	h := &Handler{
		service:   service,
		options:   options,
		validator: NewMessageValidator(),
		logger:    logger,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return h
}

// checkOrigin allows requests without an Origin header (non-browser clients)
// and browsers from the configured origins
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.options.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return len(h.options.AllowedOrigins) == 0
}

// Handle handles websocket requests from the peer.
func (h *Handler) Handle(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		handler:  h,
		conn:     conn,
		send:     make(chan WriteData, sendBufferSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		clientID: api.ClientID(c),
		logger:   h.logger.With(zap.String("clientID", api.ClientID(c))),
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// recording is audio received between start and end
type recording struct {
	filename string
	language string
	mode     string
	audio    bytes.Buffer
	started  time.Time
}

// Client is one streaming connection
type Client struct {
	handler *Handler

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Closed when the read pump exits.
	done chan struct{}

	// Cancelled when the connection goes away, stops a running pipeline.
	ctx    context.Context
	cancel context.CancelFunc

	clientID string
	logger   *zap.Logger

	mu         sync.Mutex
	recording  *recording
	processing bool
}

// readPump pumps messages from the websocket connection.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processAudio(message)
		}
	}
}

// writePump pumps queued messages to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Warn("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// enqueue queues a frame unless the connection is gone
func (c *Client) enqueue(messageType int, payload []byte) bool {
	select {
	case c.send <- WriteData{Type: messageType, Payload: payload}:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) sendJSON(v interface{}) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return false
	}
	return c.enqueue(websocket.TextMessage, payload)
}

func (c *Client) sendError(code, message string) {
	c.sendJSON(CreateErrorMessage(code, message, ""))
}

// processMessage processes incoming control messages
func (c *Client) processMessage(message []byte) {
	msg, err := c.handler.validator.ValidateMessage(message)
	if err != nil {
		c.sendError("invalid_message", err.Error())
		return
	}

	switch m := msg.(type) {
	case *StartMessage:
		c.handleStart(m)
	case *EndMessage:
		c.handleEnd()
	case *PingMessage:
		c.sendJSON(CreatePongMessage(m.Data))
	}
}

func (c *Client) handleStart(msg *StartMessage) {
	mode := msg.Response
	if mode == "" {
		mode = c.handler.options.ResponseMode
	}
	if mode == config.ResponseAudio && !c.handler.service.SpeechEnabled() {
		_, code := api.StatusFor(domain.ErrSpeechDisabled)
		c.sendError(code, domain.ErrSpeechDisabled.Error())
		return
	}

	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		c.sendError("busy", "previous recording is still being processed")
		return
	}
	c.recording = &recording{
		filename: msg.Filename,
		language: msg.Language,
		mode:     mode,
		started:  time.Now(),
	}
	c.mu.Unlock()

	c.logger.Debug("Recording started", zap.String("mode", mode))
	c.sendJSON(&StartedMessage{BaseMessage: newBase(MessageTypeStarted), Response: mode})
}

// processAudio appends a binary frame to the open recording
func (c *Client) processAudio(data []byte) {
	c.mu.Lock()
	rec := c.recording
	if rec == nil {
		c.mu.Unlock()
		c.sendError("no_recording", "send a start message before audio")
		return
	}

	limit := c.handler.options.MaxUploadBytes
	if limit > 0 && int64(rec.audio.Len()+len(data)) > limit {
		c.recording = nil
		c.mu.Unlock()
		_, code := api.StatusFor(domain.ErrAudioTooLarge)
		c.sendError(code, domain.ErrAudioTooLarge.Error())
		return
	}
	rec.audio.Write(data)
	c.mu.Unlock()
}

func (c *Client) handleEnd() {
	c.mu.Lock()
	rec := c.recording
	if rec == nil {
		c.mu.Unlock()
		c.sendError("no_recording", "no recording in progress")
		return
	}
	c.recording = nil
	c.processing = true
	c.mu.Unlock()

	go c.runPipeline(rec)
}

// runPipeline corrects a finished recording and streams the outcome back.
// The client is released before the last reply is queued, so a start sent
// in response to that reply is accepted.
func (c *Client) runPipeline(rec *recording) {
	defer c.endProcessing()

	ctx := c.ctx
	if timeout := c.handler.options.RequestTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	filename := rec.filename
	if filename == "" {
		filename = "stream.webm"
	}
	upload := usecase.AudioUpload{
		Filename: filename,
		Content:  &rec.audio,
		Language: rec.language,
		ClientID: c.clientID,
	}

	c.logger.Info("Processing streamed recording",
		zap.Int("bytes", rec.audio.Len()),
		zap.Duration("recorded", time.Since(rec.started)),
		zap.String("mode", rec.mode))

	if rec.mode != config.ResponseAudio {
		result, err := c.handler.service.CorrectRecording(ctx, upload)
		c.endProcessing()
		if err != nil {
			c.sendPipelineError(err)
			return
		}
		c.sendJSON(CreateResultMessage(domain.NewTranscriptionResponse(result.Correction, string(result.SagaID))))
		return
	}

	result, err := c.handler.service.SpeakCorrection(ctx, upload)
	if err != nil {
		c.endProcessing()
		c.sendPipelineError(err)
		return
	}
	if !c.sendJSON(CreateResultMessage(domain.NewTranscriptionResponse(result.Correction, string(result.SagaID)))) {
		return
	}

	for offset := 0; offset < len(result.Audio); offset += audioChunkSize {
		end := offset + audioChunkSize
		if end > len(result.Audio) {
			end = len(result.Audio)
		}
		if !c.enqueue(websocket.BinaryMessage, result.Audio[offset:end]) {
			return
		}
	}
	c.endProcessing()
	c.sendJSON(&AudioEndMessage{BaseMessage: newBase(MessageTypeAudioEnd), Bytes: len(result.Audio)})
}

func (c *Client) endProcessing() {
	c.mu.Lock()
	c.processing = false
	c.mu.Unlock()
}

func (c *Client) sendPipelineError(err error) {
	status, code := api.StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		c.logger.Error("Streamed recording failed", zap.Error(err))
		message = "internal server error"
	}
	c.sendJSON(CreateErrorMessage(code, message, string(usecase.PipelineID(err))))
}
