// Package rag talks to the external retrieval-augmented-generation backend.
// The backend is opaque: embeddings, vector search and generation all happen
// on its side, this client only carries the JSON contract.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNoDocuments is the backend's "nothing uploaded yet" condition,
	// surfaced distinctly so the UI can tell the user to upload first.
	ErrNoDocuments = errors.New("rag: no documents uploaded")

	// ErrUnavailable covers network failures and non-2xx responses.
	ErrUnavailable = errors.New("rag: backend unavailable")
)

// ContextItem is a scored passage as the backend reports it.
type ContextItem struct {
	Content string `json:"content"`
	Score   int    `json:"score"`
	Source  string `json:"source,omitempty"`
}

// Answer is the backend's reply. Exactly one of Context or Blob is set:
// newer backends return scored items, older ones a single opaque string.
type Answer struct {
	Response string
	Context  []ContextItem
	Blob     string
}

type File struct {
	Name    string
	Content io.Reader
}

type FileStatus struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Error    string `json:"error,omitempty"`
}

type FileInfo struct {
	Filename string `json:"filename"`
	Size     string `json:"size"`
}

// Backend is the surface chatflow depends on; tests swap in a fake.
type Backend interface {
	Ask(ctx context.Context, question, userID string) (*Answer, error)
	UploadFiles(ctx context.Context, userID string, files []File) ([]FileStatus, error)
	ListFiles(ctx context.Context, userID string) ([]FileInfo, error)
	DeleteFile(ctx context.Context, userID, filename string) error
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8000"
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 90 * time.Second},
	}
}

type askReq struct {
	Question string `json:"question"`
	UserID   string `json:"user_id,omitempty"`
}

type askResp struct {
	Response    string          `json:"response"`
	Context     json.RawMessage `json:"context,omitempty"`
	ContextUsed json.RawMessage `json:"context_used,omitempty"`
}

type errResp struct {
	Detail string `json:"detail"`
}

func (c *Client) Ask(ctx context.Context, question, userID string) (*Answer, error) {
	b, err := json.Marshal(askReq{Question: question, UserID: userID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/ask_question/", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errResp
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(e.Detail, "Aucun document") {
			return nil, ErrNoDocuments
		}
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var decoded askResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	raw := decoded.ContextUsed
	if len(raw) == 0 {
		raw = decoded.Context
	}

	ans := &Answer{Response: decoded.Response}
	if len(raw) > 0 {
		// scored list or a single opaque blob, depending on backend vintage
		var items []ContextItem
		if err := json.Unmarshal(raw, &items); err == nil {
			ans.Context = items
		} else {
			var blob string
			if err := json.Unmarshal(raw, &blob); err == nil {
				ans.Blob = blob
			}
		}
	}
	return ans, nil
}

func (c *Client) UploadFiles(ctx context.Context, userID string, files []File) ([]FileStatus, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("user_id", userID); err != nil {
		return nil, err
	}
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upload_files/", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var statuses []FileStatus
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return statuses, nil
}

// ListFiles returns the user's uploaded files. The backend answers 404 when
// nothing has been uploaded, which reads as an empty list here.
func (c *Client) ListFiles(ctx context.Context, userID string) ([]FileInfo, error) {
	url := fmt.Sprintf("%s/get_uploaded_filenames/%s", c.BaseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var files []FileInfo
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return files, nil
}

type deleteReq struct {
	UserID   string `json:"user_id"`
	Filename string `json:"filename"`
}

func (c *Client) DeleteFile(ctx context.Context, userID, filename string) error {
	b, err := json.Marshal(deleteReq{UserID: userID, Filename: filename})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/documents/delete/", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
