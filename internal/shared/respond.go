package shared

import (
	"encoding/json"
	"errors"
	"net/http"
)

type errorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// WriteError maps the error taxonomy onto HTTP statuses. Permission
// failures stay generic on purpose: the body never says which rule failed.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		WriteJSON(w, http.StatusForbidden, errorBody{Error: "permission denied"})
	case errors.Is(err, ErrNotFound):
		WriteJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, ErrValidation):
		WriteJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrExpiredToken),
		errors.Is(err, ErrInvalidRefreshToken):
		WriteJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	default:
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
