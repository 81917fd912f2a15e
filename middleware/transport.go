package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/goSession/authapi"
)

// Gateway performs one logical call, including any refresh and retry.
type Gateway interface {
	Do(ctx context.Context, req authapi.Request) (*authapi.Response, error)
}

// Transport is an http.RoundTripper backed by a Gateway. Only the path and
// query of outgoing requests are used; the gateway resolves them against its
// own base URL. Non-2xx statuses are returned as responses, not errors,
// except when the session has ended: that surfaces as ErrSessionInvalid.
type Transport struct {
	gateway Gateway
}

// NewTransport returns a Transport for g.
func NewTransport(g Gateway) *Transport {
	return &Transport{gateway: g}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	if t == nil || t.gateway == nil {
		return nil, errors.New("middleware: transport has no gateway")
	}

	var body []byte
	if r.Body != nil {
		data, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("middleware: read request body: %w", err)
		}
		body = data
	}

	header := r.Header.Clone()
	if header != nil {
		header.Del("Authorization")
	}

	req := authapi.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: header,
		Body:   body,
	}

	resp, err := t.gateway.Do(r.Context(), req)
	if errors.Is(err, authapi.ErrSessionInvalid) {
		return nil, err
	}
	if resp == nil {
		if err == nil {
			err = errors.New("middleware: gateway returned no response")
		}
		return nil, err
	}
	return toHTTPResponse(r, resp), nil
}

func toHTTPResponse(r *http.Request, resp *authapi.Response) *http.Response {
	header := resp.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", resp.Status, http.StatusText(resp.Status)),
		StatusCode:    resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       r,
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
