package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type (
	Params struct {
		Method      string
		Path        string
		Body        interface{}
		Response    interface{}
		QueryParams map[string]string
		Headers     map[string]string
	}

	Client interface {
		Do(ctx context.Context, param Params) error
		// Stream returns the raw body of a long-lived response. The caller closes it.
		Stream(ctx context.Context, param Params) (io.ReadCloser, error)
	}

	Config struct {
		Host      string
		AccessKey string
	}

	client struct {
		httpClient   *http.Client
		streamClient *http.Client
		baseUrl      string
		accessKey    string
	}
)

const (
	accessKeyHeader = "X-Access-Token"
)

func NewClient(cfg Config) Client {
	host := cfg.Host
	if !strings.HasSuffix(host, "/") {
		host += "/"
	}
	if !strings.HasSuffix(host, "v1/") {
		host += "v1/"
	}

	return &client{
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
		streamClient: &http.Client{},
		baseUrl:      host,
		accessKey:    cfg.AccessKey,
	}
}

func (c client) Do(ctx context.Context, param Params) error {
	req, err := c.newRequest(ctx, param)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseError(resp.StatusCode, responseBody)
	}

	if param.Response != nil {
		if err := json.Unmarshal(responseBody, param.Response); err != nil {
			return err
		}
	}
	return nil
}

func (c client) Stream(ctx context.Context, param Params) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, param)
	if err != nil {
		return nil, err
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() {
			_ = resp.Body.Close()
		}()
		body, _ := io.ReadAll(resp.Body)
		return nil, c.parseError(resp.StatusCode, body)
	}
	return resp.Body, nil
}

func (c client) newRequest(ctx context.Context, param Params) (*http.Request, error) {
	requestUrl, err := url.Parse(c.baseUrl + param.Path)
	if err != nil {
		return nil, err
	}

	if len(param.QueryParams) > 0 {
		values := url.Values{}
		for k, v := range param.QueryParams {
			values.Add(k, v)
		}
		requestUrl.RawQuery = values.Encode()
	}

	var body io.Reader
	if param.Body != nil {
		bodyBin, err := json.Marshal(param.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewBuffer(bodyBin)
	}

	req, err := http.NewRequestWithContext(ctx, param.Method, requestUrl.String(), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range param.Headers {
		req.Header.Set(k, v)
	}

	if c.accessKey != "" {
		req.Header.Set(accessKeyHeader, c.accessKey)
	}
	return req, nil
}

func (c client) parseError(status int, b []byte) error {
	var errorResponse struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &errorResponse); err != nil || errorResponse.Message == "" {
		return fmt.Errorf("request failed with status %d", status)
	}
	return errors.New(errorResponse.Message)
}
