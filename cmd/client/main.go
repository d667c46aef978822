package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/satriahrh/speakfix/internal/api"
)

const chunkSize = 32 * 1024

func main() {
	server := flag.String("server", "http://localhost:8080", "speakfix base URL")
	file := flag.String("file", "", "audio file to upload")
	language := flag.String("language", "", "BCP-47 language hint")
	response := flag.String("response", "", "response mode: json or audio")
	output := flag.String("out", "correction.wav", "where to write spoken corrections")
	token := flag.String("token", os.Getenv("SPEAKFIX_TOKEN"), "bearer token")
	useWS := flag.Bool("ws", false, "stream the file over /ws/transcribe")
	flag.Parse()

	if *file == "" {
		log.Fatal("-file is required")
	}

	audio, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *file, err)
	}
	log.Printf("Loaded %s (%d bytes)", *file, len(audio))

	if *useWS {
		err = streamRecording(*server, *token, filepath.Base(*file), *language, *response, audio, *output)
	} else {
		err = uploadRecording(*server, *token, filepath.Base(*file), *language, *response, audio, *output)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func uploadRecording(server, token, filename, language, response string, audio []byte, output string) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}
	if language != "" {
		form.WriteField("language", language)
	}
	if response != "" {
		form.WriteField("response", response)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(server, "/")+"/transcribe/", &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	log.Printf("%s in %s", resp.Status, time.Since(start).Round(time.Millisecond))

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "audio/") {
		printJSON(payload)
		return nil
	}

	for _, name := range api.ExposedHeaders {
		if v := resp.Header.Get(name); v != "" {
			fmt.Printf("%s: %s\n", name, api.DecodeHeaderText(v))
		}
	}
	if err := os.WriteFile(output, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	log.Printf("Wrote %d bytes to %s", len(payload), output)
	return nil
}

func streamRecording(server, token, filename, language, response string, audio []byte, output string) error {
	u, err := url.Parse(server)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws/transcribe"

	headers := http.Header{}
	if token != "" {
		headers.Add("Authorization", "Bearer "+token)
	}

	log.Printf("connecting to %s", u.String())
	c, _, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer c.Close()

	start := map[string]string{"type": "start", "filename": filename}
	if language != "" {
		start["language"] = language
	}
	if response != "" {
		start["response"] = response
	}
	if err := c.WriteJSON(start); err != nil {
		return fmt.Errorf("failed to send start: %w", err)
	}

	for offset := 0; offset < len(audio); offset += chunkSize {
		end := offset + chunkSize
		if end > len(audio) {
			end = len(audio)
		}
		if err := c.WriteMessage(websocket.BinaryMessage, audio[offset:end]); err != nil {
			return fmt.Errorf("failed to send audio chunk: %w", err)
		}
	}

	if err := c.WriteJSON(map[string]string{"type": "end"}); err != nil {
		return fmt.Errorf("failed to send end: %w", err)
	}
	log.Printf("Sent %d bytes, waiting for the correction", len(audio))

	var spoken bytes.Buffer
	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if messageType == websocket.BinaryMessage {
			spoken.Write(message)
			continue
		}

		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &base); err != nil {
			return fmt.Errorf("invalid server message: %w", err)
		}

		switch base.Type {
		case "started":
			log.Printf("Recording accepted")
		case "result":
			printJSON(message)
			if response != "audio" {
				return nil
			}
		case "audio_end":
			if err := os.WriteFile(output, spoken.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			log.Printf("Wrote %d bytes to %s", spoken.Len(), output)
			return nil
		case "error":
			printJSON(message)
			return fmt.Errorf("server reported an error")
		}
	}
}

func printJSON(payload []byte) {
	var out bytes.Buffer
	if err := json.Indent(&out, payload, "", "  "); err != nil {
		fmt.Println(string(payload))
		return
	}
	fmt.Println(out.String())
}
