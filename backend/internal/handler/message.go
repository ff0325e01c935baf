package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/legorachat/shared/api"
	"github.com/itchan-dev/legorachat/shared/domain"
	"github.com/itchan-dev/legorachat/shared/errors"
	mw "github.com/itchan-dev/legorachat/shared/middleware"
	"github.com/itchan-dev/legorachat/shared/utils"
)

func parseThreadId(r *http.Request) (domain.ThreadId, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "thread"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Validation("Invalid thread ID")
	}
	return id, nil
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := mw.GetUserIdFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	threadId, err := parseThreadId(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	var body api.SendMessageRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	msg, err := h.message.Send(userId, threadId, body.Content)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, api.MessageResponse{Message: msg})
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := mw.GetUserIdFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	threadId, err := parseThreadId(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	msgs, err := h.message.List(userId, threadId)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.MessageListResponse(msgs))
}
