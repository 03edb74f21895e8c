package api

import (
	"github.com/gmsas95/myrai-care/internal/actions"
	"github.com/gmsas95/myrai-care/internal/capability"
)

type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type ChatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type ConfirmRequest struct {
	UserID     string                 `json:"user_id"`
	Amendments map[string]interface{} `json:"amendments,omitempty"`
}

type RejectRequest struct {
	UserID string `json:"user_id"`
}

type ConfirmationsResponse struct {
	UserID  string                         `json:"user_id"`
	Pending []*actions.PendingConfirmation `json:"pending"`
}

type CapabilitiesResponse struct {
	Capabilities []*capability.Definition `json:"capabilities"`
	Count        int                      `json:"count"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}
