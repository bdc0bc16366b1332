package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/taskboard/usecase"
)

// TokenStore is where the CLI keeps the signed-in token between runs.
type TokenStore interface {
	GetString(key string) (string, bool, error)
	SetString(key, value string) error
	Remove(key string) error
}

var errNotSignedIn = errors.New("not signed in; run `boardctl login` first")

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
}

type apiClient struct {
	baseURL string
	http    *fasthttp.Client
	tokens  TokenStore
	timeout time.Duration
}

func newAPIClient(baseURL string, tokens TokenStore, timeout time.Duration, dial fasthttp.DialFunc) *apiClient {
	c := &fasthttp.Client{
		Name:         "boardctl",
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	if dial != nil {
		c.Dial = dial
	}
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    c,
		tokens:  tokens,
		timeout: timeout,
	}
}

func (c *apiClient) token() (string, error) {
	token, ok, err := c.tokens.GetString(usecase.KeyAuthToken)
	if err != nil {
		return "", err
	}
	if !ok || token == "" {
		return "", errNotSignedIn
	}
	return token, nil
}

// call sends body as JSON and decodes the envelope data into out.
func (c *apiClient) call(method, path string, authed bool, body, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if authed {
		token, err := c.token()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		raw, err := sonic.Marshal(body)
		if err != nil {
			return err
		}
		req.SetBodyRaw(raw)
	}

	if err := c.http.DoTimeout(req, resp, c.timeout); err != nil {
		return err
	}

	var env envelope
	if len(resp.Body()) > 0 {
		if err := sonic.Unmarshal(resp.Body(), &env); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	if status := resp.StatusCode(); status >= 300 {
		return &apiError{Status: status, Code: env.Code, Message: env.Error}
	}
	if out != nil && len(env.Data) > 0 {
		return sonic.Unmarshal(env.Data, out)
	}
	return nil
}
