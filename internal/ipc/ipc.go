// Package ipc carries newline-delimited JSON requests and responses over
// the daemon's unix control socket.
package ipc

import (
	"encoding/json"
	"fmt"
)

const SocketPath = "/tmp/dhwani.sock"

// maxLine bounds a single request or response.
const maxLine = 1 << 20

type Request struct {
	Cmd  string `json:"cmd"`
	Text string `json:"text,omitempty"`
	ID   string `json:"id,omitempty"`
	Time string `json:"time,omitempty"`
	File string `json:"file,omitempty"`
	// Symptom names a quick crop doctor complaint.
	Symptom string `json:"symptom,omitempty"`

	Lang    string `json:"lang,omitempty"`
	Voice   *bool  `json:"voice,omitempty"`
	Notify  *bool  `json:"notify,omitempty"`
	Offline *bool  `json:"offline,omitempty"`
}

type Response struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Text  string          `json:"text,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler answers one request. It must be safe for concurrent use.
type Handler func(req Request) Response

// OK builds a successful response; data, if not nil, is JSON encoded.
func OK(text string, data any) Response {
	r := Response{OK: true, Text: text}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Fail(fmt.Errorf("encode response: %w", err))
		}
		r.Data = raw
	}
	return r
}

func Fail(err error) Response {
	return Response{Error: err.Error()}
}

// Decode unpacks Data into v.
func (r Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("response has no data")
	}
	return json.Unmarshal(r.Data, v)
}
