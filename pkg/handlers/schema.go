package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/schema"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

// SchemaCatalog projects and lists the business schema. *schema.Projector
// implements it.
type SchemaCatalog interface {
	Project(ctx context.Context, scope string) schema.Descriptor
	Tables(ctx context.Context) ([]datasource.TableMetadata, error)
	HasTable(ctx context.Context, name string) (bool, error)
}

// --- Request Types ---

// SelectTableRequest restricts a session to one table. An empty table clears it.
type SelectTableRequest struct {
	SessionID string `json:"session_id"`
	Table     string `json:"table"`
}

// --- Response Types ---

// SchemaResponse is the projected schema in prompt form.
type SchemaResponse struct {
	Format schema.Format `json:"format"`
	Tables int           `json:"tables"`
	Scope  string        `json:"scope,omitempty"`
	Schema string        `json:"schema"`
}

// TablesResponse lists the discoverable base tables.
type TablesResponse struct {
	Tables []string `json:"tables"`
}

// SelectedTableResponse is a session's table selection.
type SelectedTableResponse struct {
	SessionID string `json:"session_id"`
	Table     string `json:"table"`
}

// --- Handler ---

// SchemaHandler serves the projected schema and the per-session table scope.
type SchemaHandler struct {
	catalog       SchemaCatalog
	scope         services.TableScope
	defaultFormat schema.Format
	logger        *zap.Logger
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(catalog SchemaCatalog, scope services.TableScope, defaultFormat schema.Format, logger *zap.Logger) *SchemaHandler {
	if defaultFormat == "" {
		defaultFormat = schema.FormatNameTOON
	}
	return &SchemaHandler{
		catalog:       catalog,
		scope:         scope,
		defaultFormat: defaultFormat,
		logger:        logger.Named("schema-handler"),
	}
}

// RegisterRoutes registers the schema handler's routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux, requireAuth func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /api/schema", requireAuth(h.GetSchema))
	mux.HandleFunc("GET /api/tables", requireAuth(h.ListTables))
	mux.HandleFunc("POST /api/select-table", requireAuth(h.SelectTable))
	mux.HandleFunc("GET /api/selected-table", requireAuth(h.SelectedTable))
}

// GetSchema handles GET /api/schema?format=json|toon&session_id=...
// The session's table selection, if any, restricts the result.
func (h *SchemaHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	format := h.defaultFormat
	if name := r.URL.Query().Get("format"); name != "" {
		parsed, err := schema.ParseFormat(name)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_format", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		format = parsed
	}

	scope := h.scope.Get(r.URL.Query().Get("session_id"))
	descriptor := h.catalog.Project(r.Context(), scope)
	if descriptor.IsEmpty() {
		if err := ErrorResponse(w, http.StatusServiceUnavailable, "schema_unavailable", apperrors.ErrNoSchema.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	text, err := descriptor.Format(format)
	if err != nil {
		h.logger.Error("Failed to format schema", zap.String("format", string(format)), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "format_schema_failed", "Failed to format schema"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := SchemaResponse{Format: format, Tables: len(descriptor.Tables), Scope: scope, Schema: text}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListTables handles GET /api/tables
func (h *SchemaHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.catalog.Tables(r.Context())
	if err != nil {
		h.logger.Error("Failed to list tables", zap.Error(err))
		if err := ErrorResponse(w, http.StatusServiceUnavailable, "schema_unavailable", "Failed to list tables"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.DisplayName())
	}
	if err := WriteJSON(w, http.StatusOK, TablesResponse{Tables: names}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SelectTable handles POST /api/select-table
func (h *SchemaHandler) SelectTable(w http.ResponseWriter, r *http.Request) {
	var req SelectTableRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_session_id", "session_id is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	table := strings.TrimSpace(req.Table)
	if table != "" {
		exists, err := h.catalog.HasTable(r.Context(), table)
		if err != nil {
			h.logger.Error("Failed to check table", zap.String("table", table), zap.Error(err))
			if err := ErrorResponse(w, http.StatusServiceUnavailable, "schema_unavailable", "Failed to check table"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if !exists {
			if err := ErrorResponse(w, http.StatusNotFound, "table_not_found", "Table not found: "+table); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
	}

	h.scope.Set(req.SessionID, table)
	h.logger.Info("Table selection changed", zap.String("session_id", req.SessionID), zap.String("table", table))

	if err := WriteJSON(w, http.StatusOK, SelectedTableResponse{SessionID: req.SessionID, Table: table}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SelectedTable handles GET /api/selected-table?session_id=...
func (h *SchemaHandler) SelectedTable(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_session_id", "session_id is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := SelectedTableResponse{SessionID: sessionID, Table: h.scope.Get(sessionID)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
