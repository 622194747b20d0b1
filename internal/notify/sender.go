package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Sender adalah transport chat eksternal: kirim teks ke satu user.
type Sender interface {
	Send(ctx context.Context, userID, content string) error
}

// LogSender dipakai saat transport belum dikonfigurasi.
type LogSender struct{}

func (LogSender) Send(_ context.Context, userID, content string) error {
	log.Printf("notify %s: %s", userID, content)
	return nil
}

// HTTPSender mem-post pesan ke endpoint transport chat.
type HTTPSender struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPSender(endpoint string) *HTTPSender {
	return &HTTPSender{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSender) Send(ctx context.Context, userID, content string) error {
	body, _ := json.Marshal(map[string]string{"user_id": userID, "content": content})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("transport returned %d", resp.StatusCode)
	}
	return nil
}
