package ingapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// Request is a fully signed request handed to a Sender.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is what a Sender returns. Body is read in full.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Sender dispatches signed requests. It must send headers and body exactly
// as given, since they are covered by the signature.
type Sender interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, req *Request) (*Response, error)

func (f SenderFunc) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// HTTPSender sends requests with an *http.Client. A nil Client uses
// http.DefaultClient.
type HTTPSender struct {
	Client *http.Client
}

func (s HTTPSender) Send(ctx context.Context, req *Request) (*Response, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}

	httpReq.Header = req.Header.Clone()
	if httpReq.Header == nil {
		httpReq.Header = http.Header{}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
