package handler

import (
	"net/http"

	"github.com/itchan-dev/legorachat/shared/api"
	mw "github.com/itchan-dev/legorachat/shared/middleware"
	"github.com/itchan-dev/legorachat/shared/utils"
)

func (h *Handler) CreateThread(w http.ResponseWriter, r *http.Request) {
	userId, ok := mw.GetUserIdFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var body api.CreateThreadRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	thread, err := h.thread.Create(userId, body.ParticipantUsernames)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, api.ThreadResponse{Thread: thread})
}

func (h *Handler) GetThreads(w http.ResponseWriter, r *http.Request) {
	userId, ok := mw.GetUserIdFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	threads, err := h.thread.List(userId)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.ThreadListResponse(threads))
}
