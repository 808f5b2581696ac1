package http

import (
	"encoding/json"
	"fmt"
)

// Response is built by a handler and written exactly once by the server.
// Headers are last-write-wins and emitted in name order; values should stay
// within ASCII/Latin-1.
type Response struct {
	Code    int
	Status  string
	Body    []byte
	Headers map[string]string
}

// NewResponse returns an empty 200 OK response.
func NewResponse() *Response {
	return &Response{
		Code:    StatusOK,
		Status:  "OK",
		Body:    make([]byte, 0),
		Headers: make(map[string]string),
	}
}

// NewHTMLResponse returns a 200 OK response carrying body as UTF-8 HTML.
func NewHTMLResponse(body string) *Response {
	return NewResponse().WithHTML(body)
}

// SetCode sets the status code and reason phrase. The phrase should be ASCII.
func (response *Response) SetCode(code int, status string) {
	response.Code = code
	response.Status = status
}

func (response *Response) SetBody(body []byte) {
	response.Body = body
}

func (response *Response) SetBodyString(body string) {
	response.Body = []byte(body)
}

// SetHeader sets a header, replacing any previous value.
func (response *Response) SetHeader(name, value string) {
	if response.Headers == nil {
		response.Headers = make(map[string]string)
	}
	response.Headers[name] = value
}

// WithStatus sets code along with its standard reason phrase.
func (response *Response) WithStatus(code int) *Response {
	response.SetCode(code, StatusText(code))
	return response
}

func (response *Response) WithHeader(name, value string) *Response {
	response.SetHeader(name, value)
	return response
}

func (response *Response) WithText(payload string) *Response {
	response.SetHeader("Content-Type", "text/plain; charset=utf-8")
	response.SetBodyString(payload)
	return response
}

func (response *Response) WithHTML(payload string) *Response {
	response.SetHeader("Content-Type", "text/html; charset=utf-8")
	response.SetBodyString(payload)
	return response
}

// WithJSON encodes payload as the body. A string payload is sent as is.
// Encoding failures panic, which the server reports as a 500.
func (response *Response) WithJSON(payload any) *Response {
	response.SetHeader("Content-Type", "application/json")
	if s, ok := payload.(string); ok {
		response.SetBodyString(s)
		return response
	}
	body, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Errorf("http: encoding response to json: %w", err))
	}
	response.SetBody(body)
	return response
}

var errorBodyText = map[int]string{
	StatusNotFound:            "Resource not found",
	StatusInternalServerError: "Internal error in handler function",
}

// errorResponse builds the canned response for an engine generated error,
// e.g. "Error 404: Resource not found".
func errorResponse(code int) *Response {
	text, ok := errorBodyText[code]
	if !ok {
		text = StatusText(code)
	}
	response := NewResponse().WithStatus(code)
	response.SetBodyString(fmt.Sprintf("Error %d: %s", code, text))
	return response
}
