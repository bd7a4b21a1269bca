package http

import (
	"encoding/json"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/kjstillabower/pasture-weather-service/internal/observability"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/x-msgpack"
)

// wantsMsgpack reports whether the caller asked for MessagePack via ?format=msgpack.
func wantsMsgpack(r *http.Request) bool {
	return r.URL.Query().Get("format") == "msgpack"
}

// writeResponse encodes v as JSON, or as MessagePack keyed by the same json field names
// when the request asks for it.
func writeResponse(w http.ResponseWriter, r *http.Request, status int, v any) {
	if wantsMsgpack(r) {
		w.Header().Set("Content-Type", contentTypeMsgpack)
		w.WriteHeader(status)
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(v); err != nil {
			observability.LoggerFromContext(r.Context()).Debug("msgpack encode failed", zap.Error(err))
		}
		return
	}
	writeJSON(w, status, v)
}

// writeJSON writes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the error envelope shared by every endpoint.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// writeError writes the JSON error envelope with the request's correlation id.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:      code,
		Message:   message,
		RequestID: correlationID(r.Context()),
	}})
}
