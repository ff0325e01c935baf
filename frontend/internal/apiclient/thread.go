package apiclient

import (
	"context"
	"net/http"

	"github.com/itchan-dev/legorachat/shared/api"
	"github.com/itchan-dev/legorachat/shared/domain"
)

// Threads returns the caller's threads, most recently active first.
func (c *APIClient) Threads(ctx context.Context) ([]domain.ThreadSummary, error) {
	var threads api.ThreadListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/threads", nil, http.StatusOK, &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

func (c *APIClient) CreateThread(ctx context.Context, usernames []domain.Username) (domain.Thread, error) {
	var thread api.ThreadResponse
	req := api.CreateThreadRequest{ParticipantUsernames: usernames}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/threads", req, http.StatusCreated, &thread); err != nil {
		return domain.Thread{}, err
	}
	return thread.Thread, nil
}
