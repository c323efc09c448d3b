package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response is the standard JSON response envelope.
type Response struct {
	Result  interface{} `json:"result"`
	Success bool        `json:"success"`
	Errors  []APIError  `json:"errors"`
}

// APIError represents a single error in the response envelope.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SuccessResponse builds a successful response envelope.
func SuccessResponse(result interface{}) Response {
	return Response{
		Result:  result,
		Success: true,
		Errors:  []APIError{},
	}
}

// ErrorResponse builds an error response envelope.
func ErrorResponse(code int, message string) Response {
	return Response{
		Result:  nil,
		Success: false,
		Errors: []APIError{
			{Code: code, Message: message},
		},
	}
}

// WriteJSON serialises resp as JSON and writes it to w with the given HTTP status code.
func WriteJSON(w http.ResponseWriter, status int, resp interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
