package http

import "github.com/jthomaschappell/echolingo-resurgence/internal/supply"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// SupplyRequestList is the response body for GET /api/v1/supply-requests.
type SupplyRequestList struct {
	SupplyRequests []supply.SupplyRequest `json:"supplyRequests"`
	Count          int                    `json:"count"`
}
