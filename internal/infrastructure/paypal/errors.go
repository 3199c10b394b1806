package paypal

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
)

// errorResponse is PayPal's REST error body.
type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`

	// OAuth endpoints answer with a different shape.
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// parseError turns a non-2xx response into an application.GatewayError.
func parseError(statusCode int, body []byte) error {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil || (resp.Name == "" && resp.Error == "") {
		return &application.GatewayError{
			Name:       http.StatusText(statusCode),
			Message:    fmt.Sprintf("paypal returned status %d: %s", statusCode, truncate(string(body), 256)),
			StatusCode: statusCode,
		}
	}

	gwErr := &application.GatewayError{
		Name:       resp.Name,
		Message:    resp.Message,
		DebugID:    resp.DebugID,
		StatusCode: statusCode,
	}
	if resp.Error != "" {
		gwErr.Name = resp.Error
		gwErr.Message = resp.ErrorDescription
	}
	if len(resp.Details) > 0 {
		gwErr.Issue = resp.Details[0].Issue
		if resp.Details[0].Description != "" {
			gwErr.Message = resp.Details[0].Description
		}
	}
	return gwErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
