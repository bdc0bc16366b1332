package transport

import "github.com/bytedance/sonic"

// Envelope wraps every API answer. Error holds a message fit to show the user.
type Envelope struct {
	Status    string      `json:"status"`
	Code      string      `json:"code,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

func NewSuccess(data interface{}) Envelope {
	return Envelope{Status: "success", Data: data}
}

func NewError(code, message string) Envelope {
	return Envelope{Status: "error", Code: code, Error: message}
}

// WithData attaches details, such as per-service health, to an error envelope.
func (e Envelope) WithData(data interface{}) Envelope {
	e.Data = data
	return e
}

// WithRequestID lets clients quote the id found in the server logs.
func (e Envelope) WithRequestID(id string) Envelope {
	e.RequestID = id
	return e
}

// String renders the envelope for log lines.
func (e Envelope) String() string {
	out, err := sonic.MarshalString(e)
	if err != nil {
		return "{}"
	}
	return out
}
