package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/itchan-dev/legorachat/shared/api"
	"github.com/itchan-dev/legorachat/shared/domain"
)

func messagesPath(threadId domain.ThreadId) string {
	return fmt.Sprintf("/v1/threads/%d/messages", threadId)
}

// Messages returns the thread history in ascending order.
func (c *APIClient) Messages(ctx context.Context, threadId domain.ThreadId) ([]domain.Message, error) {
	var messages api.MessageListResponse
	if err := c.doJSON(ctx, http.MethodGet, messagesPath(threadId), nil, http.StatusOK, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *APIClient) SendMessage(ctx context.Context, threadId domain.ThreadId, content domain.MsgText) (domain.Message, error) {
	var message api.MessageResponse
	req := api.SendMessageRequest{Content: content}
	if err := c.doJSON(ctx, http.MethodPost, messagesPath(threadId), req, http.StatusCreated, &message); err != nil {
		return domain.Message{}, err
	}
	return message.Message, nil
}
