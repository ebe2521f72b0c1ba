package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/Lorentz83/dbSchema/internal/analyzer"
	"github.com/Lorentz83/dbSchema/internal/catalog"
	"github.com/Lorentz83/dbSchema/internal/domain"
	"github.com/Lorentz83/dbSchema/internal/middleware"
)

// Column is the JSON form of a catalog column.
type Column struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	NotNull bool   `json:"not_null,omitempty"`
	Unique  bool   `json:"unique,omitempty"`
}

// Table is the JSON form of a catalog table.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	DDL     string   `json:"ddl,omitempty"`
}

// Feature is the JSON form of a query feature.
type Feature struct {
	Type     string   `json:"type"`
	Used     []string `json:"used"`
	Filtered []string `json:"filtered"`
	Roles    []string `json:"roles"`
}

// EvaluateRequest is the body of POST /v1/evaluate. Principal defaults to
// the caller; only admins may evaluate as someone else.
type EvaluateRequest struct {
	Principal string `json:"principal"`
	SQL       string `json:"sql"`
}

// EvaluateResponse lists one feature per statement.
type EvaluateResponse struct {
	Features []Feature `json:"features"`
}

// ExecRequest is the body of POST /v1/admin/exec.
type ExecRequest struct {
	SQL string `json:"sql"`
}

// ExecResponse reports the catalog size after ingestion.
type ExecResponse struct {
	Tables int `json:"tables"`
}

func tableToAPI(t *catalog.Table, withDDL bool) Table {
	out := Table{
		Name: t.Name().String(),
		Columns: lo.Map(t.Columns(), func(c catalog.Column, _ int) Column {
			col := Column{Name: c.Name().String()}
			if rc, ok := c.(*catalog.RealColumn); ok {
				col.Type, col.NotNull, col.Unique = rc.Type(), rc.NotNull(), rc.Unique()
			}
			return col
		}),
	}
	if withDDL {
		out.DDL = t.String()
	}
	return out
}

func featureToAPI(f *analyzer.QueryFeature, _ int) Feature {
	return Feature{
		Type:     f.Type().String(),
		Used:     f.UsedNames(),
		Filtered: f.FilteredNames(),
		Roles:    f.RoleNames(),
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listTables(w http.ResponseWriter, _ *http.Request) {
	tables := lo.Map(s.engine.Tables(), func(t *catalog.Table, _ int) Table {
		return tableToAPI(t, false)
	})
	writeJSON(w, http.StatusOK, map[string][]Table{"tables": tables})
}

func (s *Server) getTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	t, ok := s.engine.Table(name)
	if !ok {
		s.writeError(w, r, domain.ErrRelationNotFound(name))
		return
	}
	writeJSON(w, http.StatusOK, tableToAPI(t, true))
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeBadRequest(w, "sql is required")
		return
	}
	caller, _ := middleware.IdentityFromContext(r.Context())
	principal := req.Principal
	if principal == "" {
		principal = caller.Principal
	}
	if !caller.Admin && domain.Normalize(principal) != domain.Normalize(caller.Principal) {
		writeJSON(w, http.StatusForbidden, errorBody{
			Kind:    "Forbidden",
			Message: "only admins may evaluate as another principal",
			Names:   []string{principal},
		})
		return
	}
	features, err := s.engine.Check(principal, req.SQL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EvaluateResponse{Features: lo.Map(features, featureToAPI)})
}

func (s *Server) exec(w http.ResponseWriter, r *http.Request) {
	var req ExecRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeBadRequest(w, "sql is required")
		return
	}
	// Statements before a failing one stay applied, so persist either way.
	execErr := s.engine.Exec(req.SQL)
	if s.persister != nil {
		if err := s.persister.Persist(r.Context(), s.engine); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if execErr != nil {
		s.writeError(w, r, execErr)
		return
	}
	s.logger.InfoContext(r.Context(), "schema updated",
		slog.Int("tables", len(s.engine.Tables())),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	writeJSON(w, http.StatusOK, ExecResponse{Tables: len(s.engine.Tables())})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Kind: "BadRequest", Message: "request body too large"})
			return false
		}
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromDomainError(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
	}
	writeJSON(w, status, errorBodyFrom(err))
}
