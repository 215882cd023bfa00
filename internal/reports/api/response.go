package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// envelope is the JSON shape of every non-attachment response from the
// report API. RunID is set on responses tied to a specific report run, so a
// client can correlate failures with the progress endpoint.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	RunID   string      `json:"run_id,omitempty"`
	At      time.Time   `json:"at"`
}

func okEnvelope(message string, data interface{}) envelope {
	return envelope{
		Success: true,
		Message: message,
		Data:    data,
		At:      time.Now(),
	}
}

func errEnvelope(message, detail string) envelope {
	return envelope{
		Success: false,
		Message: message,
		Error:   detail,
		At:      time.Now(),
	}
}

func runErrEnvelope(runID, message, detail string) envelope {
	e := errEnvelope(message, detail)
	e.RunID = runID
	return e
}

func sendJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
