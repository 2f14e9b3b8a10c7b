package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"sales-dashboard/internal/models"
)

const maxResponseBytes = 256 << 20

// JSONFile reads a JSON array of records from disk.
type JSONFile struct {
	path string
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

func (s *JSONFile) Name() string {
	return "json:" + s.path
}

func (s *JSONFile) Load(ctx context.Context) ([]models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return decodeRecords(f)
}

// HTTP fetches a JSON array of records with a GET request.
type HTTP struct {
	url    string
	client *http.Client
}

func NewHTTP(url string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTP{url: url, client: client}
}

func (s *HTTP) Name() string {
	return "http:" + s.url
}

func (s *HTTP) Load(ctx context.Context) ([]models.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch dataset: unexpected status %s", resp.Status)
	}

	return decodeRecords(io.LimitReader(resp.Body, maxResponseBytes))
}
