package authapi

import (
	"encoding/json"
	"net/http"
	"net/url"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TokenResponse is the success body of login, register and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

type errorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func parseErrorBody(body []byte) (string, map[string]any, bool) {
	if len(body) == 0 {
		return "", nil, false
	}
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return "", nil, false
	}
	msg := er.Error
	if msg == "" {
		msg = er.Message
	}
	if msg == "" && er.Details == nil {
		return "", nil, false
	}
	return msg, er.Details, true
}

// Request is a buffered outbound call. Body is a byte slice so the same
// request can be sent twice.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// JSONRequest builds a Request with a JSON-encoded body.
func JSONRequest(method, path string, v any) (Request, error) {
	req := Request{Method: method, Path: path}
	if v == nil {
		return req, nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return Request{}, err
	}
	req.Body = body
	req.Header = http.Header{"Content-Type": []string{"application/json"}}
	return req, nil
}

// Response is a fully read response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v any) error {
	if r == nil || len(r.Body) == 0 {
		return ErrServer
	}
	return json.Unmarshal(r.Body, v)
}
