package gateway

import (
	"encoding/json"
)

// Result is the outcome of one tool call: text for a human or planner, and
// for list and describe operations the structured rows.
type Result struct {
	Payload any    `json:"payload,omitempty"`
	Text    string `json:"text"`
}

// String renders the text followed by the payload as indented JSON.
func (r *Result) String() string {
	if r.Payload == nil {
		return r.Text
	}
	data, err := json.MarshalIndent(r.Payload, "", "  ")
	if err != nil {
		return r.Text
	}
	return r.Text + "\n" + string(data)
}

// Affected is the payload of update and delete calls.
type Affected struct {
	Rows int64 `json:"affected_rows"`
}

// Created is the payload of a create call.
type Created struct {
	ID int64 `json:"id"`
}
