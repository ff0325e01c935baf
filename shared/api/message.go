package api

import (
	"github.com/itchan-dev/legorachat/shared/domain"
)

// Request DTOs

type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// Response DTOs

// MessageResponse wraps a full message
type MessageResponse struct {
	domain.Message
}

// MessageListResponse is a thread history in ascending order
type MessageListResponse []domain.Message
