package blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/cropwatch/internal/config"
)

// Client stores objects and returns their public URL.
type Client interface {
	Put(ctx context.Context, pathname, contentType string, body []byte) (string, error)
}

// APIClient is a resty-backed implementation of Client talking to an HTTP
// object store that accepts PUT /<pathname> and answers {"url": "..."}.
type APIClient struct {
	httpClient *resty.Client
}

// NewClient builds a blob client using the provided configuration values.
func NewClient(cfg config.BlobConfig) *APIClient {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(30 * time.Second)
	if cfg.Token != "" {
		restyClient.SetAuthToken(cfg.Token)
	}

	return &APIClient{httpClient: restyClient}
}

type putResponse struct {
	URL string `json:"url"`
}

type apiError struct {
	Error string `json:"error"`
}

// Put uploads body under pathname.
func (c *APIClient) Put(ctx context.Context, pathname, contentType string, body []byte) (string, error) {
	result := new(putResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(body).
		SetResult(result).
		SetError(apiErr).
		Put("/" + strings.TrimPrefix(pathname, "/"))
	if err != nil {
		return "", fmt.Errorf("put blob %s: %w", pathname, err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return "", fmt.Errorf("blob api error: code=%d, message=%s", resp.StatusCode(), apiErr.Error)
	}
	if result.URL == "" {
		return "", errors.New("blob api returned no url")
	}

	return result.URL, nil
}
