package handler

import (
	"net/http"

	"github.com/itchan-dev/legorachat/shared/api"
	"github.com/itchan-dev/legorachat/shared/domain"
	"github.com/itchan-dev/legorachat/shared/errors"
	"github.com/itchan-dev/legorachat/shared/logger"
	"github.com/itchan-dev/legorachat/shared/utils"
)

// Login always answers with a LoginResponse so clients can tell a wrong
// password from a generic failure.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body api.LoginRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		writeLoginFailure(w, err)
		return
	}

	user, err := h.auth.Login(domain.Credentials{Username: body.Username, Password: body.Password})
	if err != nil {
		writeLoginFailure(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.LoginResponse{Success: true, User: &user})
}

func writeLoginFailure(w http.ResponseWriter, err error) {
	status := errors.StatusCode(err)
	message := err.Error()
	if status == 0 {
		logger.Log.Error("login failed", "error", err)
		status = http.StatusInternalServerError
		message = "action failed"
	}
	utils.WriteJSON(w, status, api.LoginResponse{Success: false, Error: message})
}
