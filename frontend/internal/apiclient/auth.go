package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/itchan-dev/legorachat/shared/api"
	"github.com/itchan-dev/legorachat/shared/domain"
	internal_errors "github.com/itchan-dev/legorachat/shared/errors"
)

// Login signs in (registering unknown usernames) and makes the client act
// as the returned user.
func (c *APIClient) Login(ctx context.Context, username, password string) (domain.User, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/auth/login", api.LoginRequest{Username: username, Password: password})
	if err != nil {
		return domain.User{}, err
	}
	defer resp.Body.Close()

	var body api.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.User{}, fmt.Errorf("cannot decode login response: %w", err)
	}
	if !body.Success || body.User == nil {
		status := resp.StatusCode
		if status == http.StatusOK {
			status = http.StatusUnauthorized
		}
		return domain.User{}, &internal_errors.ErrorWithStatusCode{Message: body.Error, StatusCode: status}
	}

	c.UserId = body.User.Id
	return *body.User, nil
}
