package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alapierre/go-quickpay/quickpay/model"
	"github.com/alapierre/go-quickpay/quickpay/util"
)

// Client wraps resty with a base URL, a per-call timeout and uniform
// error classification.
type Client struct {
	rest    *resty.Client
	baseURL string
}

func New(baseURL string, timeout time.Duration) *Client {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	return &Client{rest: rest, baseURL: baseURL}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostForm posts a form-encoded body without authentication, decoding a
// 2xx response into result.
func (c *Client) PostForm(ctx context.Context, endpoint string, form map[string]string, result any) error {
	r := c.rest.R().SetContext(ctx)
	if util.HTTPTraceEnabled() {
		r.EnableTrace()
	}

	resp, err := r.
		SetFormData(form).
		SetResult(result).
		Post(endpoint)

	return checkError(resp, err)
}

// PostJSON posts a JSON body with bearer auth.
func (c *Client) PostJSON(ctx context.Context, endpoint, token string, headers map[string]string, body, result any) error {
	r := c.rest.R().SetContext(ctx)
	if util.HTTPTraceEnabled() {
		r.EnableTrace()
	}

	resp, err := r.
		SetAuthToken(token).
		SetHeaders(headers).
		SetBody(body).
		SetResult(result).
		Post(endpoint)

	return checkError(resp, err)
}

// GetJSON issues a GET with bearer auth.
func (c *Client) GetJSON(ctx context.Context, endpoint, token string, result any) error {
	r := c.rest.R().SetContext(ctx)
	if util.HTTPTraceEnabled() {
		r.EnableTrace()
	}

	resp, err := r.
		SetAuthToken(token).
		SetResult(result).
		Get(endpoint)

	return checkError(resp, err)
}

func checkError(resp *resty.Response, err error) error {
	if err != nil {
		return &RequestError{Err: err}
	}
	if resp.IsError() {
		re := &RequestError{
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
		var detail model.ErrorResponse
		if json.Unmarshal(resp.Body(), &detail) == nil && detail.Type != "" {
			re.Detail = &detail
		}
		return re
	}
	return nil
}
