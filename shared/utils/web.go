package utils

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/itchan-dev/legorachat/shared/errors"
	"github.com/itchan-dev/legorachat/shared/logger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorBody struct {
	Error string `json:"error"`
}

// WriteErrorAndStatusCode writes typed errors with their status and message.
// Anything else is logged and answered with a generic 500.
func WriteErrorAndStatusCode(w http.ResponseWriter, err error) {
	status := errors.StatusCode(err)
	message := err.Error()
	if status == 0 {
		logger.Log.Error("unhandled error", "error", err)
		status = http.StatusInternalServerError
		message = "action failed"
	}
	WriteJSON(w, status, errorBody{Error: message})
}

// WriteJSON encodes body as the response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.Error("failed to encode response", "error", err)
	}
}

func DecodeValidate(r io.ReadCloser, body any) error {
	if err := Decode(r, body); err != nil {
		return err
	}
	if err := validate.Struct(body); err != nil {
		logger.Log.Debug("request validation failed", "error", err)
		return errors.Validation("Required fields missing")
	}
	return nil
}

func Decode(r io.ReadCloser, body any) error {
	if err := json.NewDecoder(r).Decode(body); err != nil {
		logger.Log.Debug("request body is not json", "error", err)
		return errors.Validation("Body is invalid json")
	}
	return nil
}
