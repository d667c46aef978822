package s3

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// fakeS3 answers the handful of S3 calls the store makes
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	if parts[0] != f.bucket {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchBucket</Code><Message>missing</Message></Error>`))
		return
	}

	switch {
	case len(parts) == 1 || parts[1] == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[parts[1]] = body
		w.Header().Set("ETag", `"fake-etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		delete(f.objects, parts[1])
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) get(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, ok
}

func newFakeStore(t *testing.T, config Config) (*AudioStore, *fakeS3) {
	t.Helper()
	fake := &fakeS3{bucket: "audio", objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	config.Endpoint = u.Host
	config.Bucket = "audio"
	config.AccessKey = "access"
	config.SecretKey = "secret"
	config.Insecure = true

	store, err := NewAudioStore(context.Background(), config, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewAudioStore() error = %v", err)
	}
	return store, fake
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{Endpoint: "s3.local", Bucket: "b", AccessKey: "a", SecretKey: "s"}, false},
		{"missing endpoint", Config{Bucket: "b"}, true},
		{"missing bucket", Config{Endpoint: "s3.local"}, true},
		{"half credentials", Config{Endpoint: "s3.local", Bucket: "b", AccessKey: "a"}, true},
		{"expiry too long", Config{Endpoint: "s3.local", Bucket: "b", PresignExpiry: 8 * 24 * time.Hour}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAudioStore_PutPresignedAndDelete(t *testing.T) {
	store, fake := newFakeStore(t, Config{Prefix: "tts"})
	ctx := context.Background()

	data := []byte("RIFF fake wav")
	link, err := store.Put(ctx, "abc.wav", bytes.NewReader(data), int64(len(data)), "audio/wav")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// plain HTTP uploads are aws-chunked, so the payload is framed
	stored, _ := fake.get("tts/abc.wav")
	if !bytes.Contains(stored, data) {
		t.Errorf("Object not stored under prefixed key")
	}

	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("Invalid URL %q: %v", link, err)
	}
	if parsed.Path != "/audio/tts/abc.wav" || parsed.Query().Get("X-Amz-Signature") == "" {
		t.Errorf("Expected presigned URL, got %s", link)
	}

	if err := store.Delete(ctx, "abc.wav"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := fake.get("tts/abc.wav"); ok {
		t.Error("Expected object to be removed")
	}
}

func TestAudioStore_PublicURL(t *testing.T) {
	store, _ := newFakeStore(t, Config{PublicBaseURL: "https://cdn.example.com/"})

	data := []byte("wav")
	link, err := store.Put(context.Background(), "a b.wav", bytes.NewReader(data), int64(len(data)), "audio/wav")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if link != "https://cdn.example.com/audio/a%20b.wav" {
		t.Errorf("Unexpected public URL %s", link)
	}
}

func TestAudioStore_MissingBucket(t *testing.T) {
	fake := &fakeS3{bucket: "other", objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	_, err := NewAudioStore(context.Background(), Config{
		Endpoint:  u.Host,
		Bucket:    "audio",
		AccessKey: "a",
		SecretKey: "s",
		Insecure:  true,
	}, zaptest.NewLogger(t))
	if err == nil {
		t.Error("Expected error for missing bucket")
	}
}

func TestObjectKey(t *testing.T) {
	store := &AudioStore{prefix: "tts"}
	if got := store.objectKey("../../escape.wav"); got != "tts/escape.wav" {
		t.Errorf("objectKey() = %q", got)
	}
	store.prefix = ""
	if got := store.objectKey("2024/x.wav"); got != "2024/x.wav" {
		t.Errorf("objectKey() = %q", got)
	}
}
