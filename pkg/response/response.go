package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"messaging-service/pkg/xerrors"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Status: "success",
		Data:   data,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func Error(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Status:  "error",
		Message: msg,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// FromError maps the service error taxonomy onto HTTP statuses.
func FromError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, xerrors.ErrAuthenticationRequired):
		Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, xerrors.ErrForbidden), errors.Is(err, xerrors.ErrInsufficientTrust):
		Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, xerrors.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, xerrors.ErrInvalidRequest):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, xerrors.ErrAlreadyExists):
		Error(w, http.StatusConflict, err.Error())
	default:
		Error(w, http.StatusInternalServerError, err.Error())
	}
}
