// Package images uploads post images to an external host and derives
// avatar references at registration.
package images

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"example.com/contextfeed/internal/logger"
)

var logg = logger.New()

// AvatarURL derives a deterministic avatar reference from the display name,
// assigned once at registration.
func AvatarURL(name string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + url.QueryEscape(name)
}

// Uploader posts image bytes to the hosting service and returns the public
// URL. Upload failure is not fatal to post creation: callers proceed
// without an image.
type Uploader struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewUploader(endpoint, apiKey string) *Uploader {
	return &Uploader{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload sends the image as a multipart form and returns its public URL.
func (u *Uploader) Upload(filename string, content io.Reader) (string, error) {
	if u.apiKey == "" {
		return "", errors.New("image hosting is not configured")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finish upload form: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, u.endpoint+"?key="+url.QueryEscape(u.apiKey), &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.http.Do(req)
	if err != nil {
		logg.Error("images", "Image upload request failed", err)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image host returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Success bool `json:"success"`
		Data    struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if !decoded.Success || decoded.Data.URL == "" {
		return "", errors.New("invalid response from image host")
	}

	logg.Info("images", "Image uploaded successfully")
	return decoded.Data.URL, nil
}
