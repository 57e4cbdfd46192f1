package famly

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"famlysync/pkg/config"
	errs "famlysync/pkg/errors"
	"famlysync/pkg/logger"
	"famlysync/pkg/ratelimit"
	"famlysync/pkg/retry"
)

const (
	// AccessTokenHeader carries the static account token
	AccessTokenHeader = "x-famly-accesstoken"

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
)

// Client represents a Famly API client
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger
}

// NewClient creates a client from settings and a resolved access token
func NewClient(cfg *config.Config, token string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout(),
		},
		headers: map[string]string{
			"accept":           "*/*",
			"accept-language":  "en-GB,en;q=0.9",
			"content-type":     "application/json",
			"user-agent":       userAgent,
			"x-famly-platform": "html",
			AccessTokenHeader:  token,
		},
		baseURL: baseURL,
		limiter: ratelimit.PerMinute(cfg.RequestsPerMinute),
		retry:   retry.FromAttempts(cfg.RetryAttempts, log),
		logger:  log,
	}
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// SetLimiter replaces the request pacer
func (c *Client) SetLimiter(l ratelimit.Limiter) {
	c.limiter = l
}

// SetRetry replaces the retry configuration
func (c *Client) SetRetry(cfg *retry.Config) {
	c.retry = cfg
}

// ListChildren returns the children visible to the account
func (c *Client) ListChildren(ctx context.Context) ([]Child, error) {
	url := ChildrenURL(c.baseURL)

	body, err := c.fetch(ctx, url, true)
	if err != nil {
		return nil, err
	}

	children, err := decodeChildren(body)
	if err != nil {
		c.logParseFailure(url, body, err)
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to parse children list")
	}

	c.logger.DebugWithFields("listed children", map[string]interface{}{
		"count": len(children),
	})

	return children, nil
}

// TaggedImages fetches one page of images tagged with childID, newest first
func (c *Client) TaggedImages(ctx context.Context, childID string, limit int, olderThan string) ([]Image, error) {
	url := TaggedImagesURL(c.baseURL, childID, limit, olderThan)

	body, err := c.fetch(ctx, url, true)
	if err != nil {
		return nil, err
	}

	var images []Image
	if err := json.Unmarshal(body, &images); err != nil {
		c.logParseFailure(url, body, err)
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to parse tagged images")
	}

	c.logger.DebugWithFields("fetched tagged images page", map[string]interface{}{
		"child_id":   childID,
		"limit":      limit,
		"older_than": olderThan,
		"count":      len(images),
	})

	return images, nil
}

// DownloadImage fetches an image blob. The token is not sent to the image host.
func (c *Client) DownloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	return c.fetch(ctx, imageURL, false)
}

// fetch performs a paced, optionally retried GET and returns the body of a 200 response
func (c *Client) fetch(ctx context.Context, url string, api bool) ([]byte, error) {
	return retry.DoWithResult(ctx, c.retry, func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		return c.get(ctx, url, api)
	})
}

func (c *Client) get(ctx context.Context, url string, api bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}

	if api {
		for key, value := range c.headers {
			req.Header.Set(key, value)
		}
	} else {
		req.Header.Set("user-agent", userAgent)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(req, resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body")
	}

	return body, nil
}

// doRequest performs an HTTP request and logs its outcome
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.Redacted(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.Redacted(),
			"error":    err.Error(),
			"duration": duration,
		})
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "network error")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.Redacted(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// checkResponseStatus turns any non-200 status into a typed error
func (c *Client) checkResponseStatus(req *http.Request, resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	apiErr := errs.FromStatusCode(resp.StatusCode)
	c.logger.WarnWithFields("unexpected API response", map[string]interface{}{
		"status": resp.StatusCode,
		"type":   string(apiErr.Type),
		"url":    req.URL.Redacted(),
	})

	return apiErr
}

func (c *Client) logParseFailure(url string, body []byte, err error) {
	preview := string(body)
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}

	c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
		"url":          url,
		"error":        err.Error(),
		"body_preview": preview,
	})
}
