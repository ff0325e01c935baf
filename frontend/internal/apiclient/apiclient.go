package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/itchan-dev/legorachat/shared/domain"
	internal_errors "github.com/itchan-dev/legorachat/shared/errors"
	mw "github.com/itchan-dev/legorachat/shared/middleware"
)

// APIClient struct handles all communication with the backend API.
// UserId is sent as the identity header on every request once set.
type APIClient struct {
	BaseURL    string
	HttpClient *http.Client
	UserId     domain.UserId
}

// New creates a new client for interacting with the backend.
func New(baseURL string) *APIClient {
	return &APIClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HttpClient: &http.Client{},
	}
}

// As returns a copy of the client acting as userId.
func (c *APIClient) As(userId domain.UserId) *APIClient {
	cp := *c
	cp.UserId = userId
	return &cp
}

// do is the single, unified helper for making API requests.
// body is encoded as json when not nil.
func (c *APIClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create API request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.UserId != 0 {
		req.Header.Set(mw.UserIdHeader, strconv.FormatInt(c.UserId, 10))
	}

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend unavailable: %w", err)
	}
	return resp, nil
}

// doJSON performs the request and decodes a response with the expected
// status into out. Other statuses are returned as ErrorWithStatusCode.
func (c *APIClient) doJSON(ctx context.Context, method, path string, body any, expected int, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != expected {
		return readError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cannot decode response from %s: %w", path, err)
	}
	return nil
}

// readError turns a non-success response into a typed error carrying the
// server's message and status.
func readError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)
	var body struct {
		Error string `json:"error"`
	}
	message := strings.TrimSpace(string(bodyBytes))
	if err := json.Unmarshal(bodyBytes, &body); err == nil && body.Error != "" {
		message = body.Error
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &internal_errors.ErrorWithStatusCode{Message: message, StatusCode: resp.StatusCode}
}
