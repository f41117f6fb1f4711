package http

import (
	"github.com/fyrsmithlabs/gav/internal/loop"
	"github.com/fyrsmithlabs/gav/internal/orchestrator"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
	Version   string `json:"version,omitempty"`
}

// GatherResponse is the response body for POST /api/v1/gather.
type GatherResponse struct {
	Bundle   orchestrator.Bundle `json:"bundle"`
	Degraded bool                `json:"degraded"`
}

// VerifyRequest is the request body for POST /api/v1/verify.
type VerifyRequest struct {
	Call   loop.ToolCall   `json:"call"`
	Result loop.ToolResult `json:"result"`
}

// VerifyResponse is the response body for POST /api/v1/verify and
// POST /api/v1/guard. Verified is false when the call was not checked,
// either because the action failed or verification could not run; Error
// then says why.
type VerifyResponse struct {
	Verified bool   `json:"verified"`
	Passed   bool   `json:"passed"`
	Feedback string `json:"feedback,omitempty"`
	Error    string `json:"error,omitempty"`
}

// GuardRequest is the request body for POST /api/v1/guard.
type GuardRequest struct {
	Call loop.ToolCall `json:"call"`
}
