package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Lorentz83/dbSchema/internal/domain"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Names   []string `json:"names,omitempty"`
}

// httpStatusFromDomainError maps an error kind to an HTTP status code.
func httpStatusFromDomainError(err error) int {
	kind := domain.KindOf(err)
	switch kind {
	case domain.KindRelationNotFound, domain.KindColumnNotFound, domain.KindMissingFromEntry:
		return http.StatusNotFound
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindDuplicateRelation, domain.KindDuplicateColumn, domain.KindRoleCycle:
		return http.StatusConflict
	}
	if kind.Internal() {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func errorBodyFrom(err error) errorBody {
	body := errorBody{Kind: domain.KindOf(err).String(), Message: err.Error()}
	var de *domain.Error
	var ue *domain.UnauthorizedError
	switch {
	case errors.As(err, &de):
		body.Names = de.Names
	case errors.As(err, &ue):
		body.Names = []string{ue.Principal, ue.Table, ue.Column}
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Kind: "BadRequest", Message: msg})
}
