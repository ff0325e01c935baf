package api

import "github.com/itchan-dev/legorachat/shared/domain"

// Request DTOs

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Response DTOs

// LoginResponse mirrors the procedure-call contract: on a wrong password
// Success is false and Error carries the reason.
type LoginResponse struct {
	Success bool         `json:"success"`
	User    *domain.User `json:"user,omitempty"`
	Error   string       `json:"error,omitempty"`
}
