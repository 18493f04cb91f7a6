package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const imgurAPIURL = "https://api.imgur.com/3/image"

// imgurUploader posts images anonymously under a registered application's
// client id. Imgur hosts them unlisted; the returned link is the share URL.
type imgurUploader struct {
	clientID string
	apiURL   string
	http     *http.Client
}

func newImgurUploader(clientID string) *imgurUploader {
	return &imgurUploader{
		clientID: clientID,
		apiURL:   imgurAPIURL,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

type imgurResponse struct {
	Data struct {
		Link  string `json:"link"`
		Error string `json:"error"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
}

func (u *imgurUploader) Upload(ctx context.Context, localPath string) (string, error) {
	raw, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("imgur: read file: %w", err)
	}

	form := url.Values{}
	form.Set("type", "base64")
	form.Set("image", base64.StdEncoding.EncodeToString(raw))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.apiURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("imgur: build request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+u.clientID)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := u.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("imgur: upload: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("imgur: read response: %w", err)
	}

	var parsed imgurResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("imgur: decode response: %w", err)
	}
	if !parsed.Success || parsed.Data.Link == "" {
		if parsed.Data.Error != "" {
			return "", fmt.Errorf("imgur: upload rejected (status %d): %s", parsed.Status, parsed.Data.Error)
		}
		return "", fmt.Errorf("imgur: upload rejected (status %d)", resp.StatusCode)
	}
	return parsed.Data.Link, nil
}
