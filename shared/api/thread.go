package api

import (
	"github.com/itchan-dev/legorachat/shared/domain"
)

// Request DTOs

type CreateThreadRequest struct {
	ParticipantUsernames []string `json:"participantUsernames" validate:"required,min=1,dive,required"`
}

// Response DTOs

// ThreadResponse wraps a freshly created thread
type ThreadResponse struct {
	domain.Thread
}

// ThreadListResponse is the viewer's thread list ordered by activity
type ThreadListResponse []domain.ThreadSummary
