// Package httpjson holds the JSON response helpers shared by the HTTP
// handlers, including RFC 7807 problem responses.
package httpjson

import (
	"encoding/json"
	"net/http"
)

const (
	problemTypeValidation = "https://luminapos.dev/problems/validation-error"
	problemTypeForbidden  = "https://luminapos.dev/problems/forbidden"
	problemTypeNotFound   = "https://luminapos.dev/problems/not-found"
	problemTypeConflict   = "https://luminapos.dev/problems/conflict"
	problemTypeInternal   = "https://luminapos.dev/problems/internal-error"
)

// Problem is an RFC 7807 problem details body.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// ProblemValidation is a 400 problem for malformed or rejected input.
func ProblemValidation(detail string) Problem {
	return Problem{Type: problemTypeValidation, Title: "Validation error", Status: http.StatusBadRequest, Detail: detail}
}

// ProblemForbidden is a 403 problem for missing or insufficient credentials.
func ProblemForbidden(detail string) Problem {
	return Problem{Type: problemTypeForbidden, Title: "Forbidden", Status: http.StatusForbidden, Detail: detail}
}

// ProblemNotFound is a 404 problem.
func ProblemNotFound(detail string) Problem {
	return Problem{Type: problemTypeNotFound, Title: "Not found", Status: http.StatusNotFound, Detail: detail}
}

// ProblemConflict is a 409 problem.
func ProblemConflict(detail string) Problem {
	return Problem{Type: problemTypeConflict, Title: "Conflict", Status: http.StatusConflict, Detail: detail}
}

// ProblemInternal is a 500 problem. The detail stays generic; the cause is
// logged server side only.
func ProblemInternal() Problem {
	return Problem{Type: problemTypeInternal, Title: "Internal error", Status: http.StatusInternalServerError}
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteProblem encodes an RFC 7807 response with its own media type.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
