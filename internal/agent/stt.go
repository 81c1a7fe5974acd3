package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"
)

// DefaultSTTURL is the local Whisper sidecar.
const DefaultSTTURL = "http://stt:8000/transcribe"

// Browsers record dictation as webm/opus unless told otherwise.
const defaultDictationName = "dictation.webm"

var ErrEmptyAudio = errors.New("dictation audio is empty")

// WhisperClient sends dictated symptom notes to a Whisper transcription
// service.
type WhisperClient struct {
	url        string
	language   string
	httpClient *http.Client
}

// NewWhisperClient targets url (DefaultSTTURL when empty). language is an
// ISO 639-1 hint such as "en"; empty lets the service detect it.
func NewWhisperClient(url, language string) *WhisperClient {
	if url == "" {
		url = DefaultSTTURL
	}
	return &WhisperClient{
		url:      url,
		language: language,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type sttResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcribe uploads one dictation clip. fileName is the name the browser
// gave the recording; its extension decides the part's content type.
func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte, fileName string) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}
	name := strings.NewReplacer(`"`, "", `\`, "").Replace(filepath.Base(fileName))
	if name == "." || name == "/" || name == "" {
		name = defaultDictationName
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	h.Set("Content-Type", audioContentType(name))
	part, err := writer.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if c.language != "" {
		if err := writer.WriteField("language", c.language); err != nil {
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return "", fmt.Errorf("STT API error: %s - %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	var result sttResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}

func audioContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".webm":
		return "audio/webm"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); strings.HasPrefix(t, "audio/") {
		return t
	}
	return "application/octet-stream"
}
