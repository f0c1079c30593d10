// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"net/url"
	"strings"
)

// SubscribeRequest is the form body of POST /subscriptions.
type SubscribeRequest struct {
	Email string `form:"email" validate:"required"`
	Name  string `form:"name" validate:"required"`
}

// SubscribeRequestFromForm reads the subscription fields from form values.
// Surrounding whitespace is trimmed, so a blank field counts as missing.
func SubscribeRequestFromForm(values url.Values) SubscribeRequest {
	return SubscribeRequest{
		Email: strings.TrimSpace(values.Get("email")),
		Name:  strings.TrimSpace(values.Get("name")),
	}
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
