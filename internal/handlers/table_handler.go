package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"backend/internal/apperrors"
	"backend/internal/config"
	"backend/internal/models"
	"backend/internal/responses"
	"backend/internal/services"
)

type TableHandler struct {
	schemaService *services.SchemaService
	recordService *services.RecordService
	limits        config.TablesConfig
	log           *zap.SugaredLogger
}

func NewTableHandler(schemaService *services.SchemaService, recordService *services.RecordService, limits config.TablesConfig, log *zap.SugaredLogger) *TableHandler {
	return &TableHandler{
		schemaService: schemaService,
		recordService: recordService,
		limits:        limits,
		log:           log,
	}
}

type pageQuery struct {
	Page  *int `form:"page"`
	Limit *int `form:"limit"`
}

type writeQuery struct {
	AcknowledgeGuessedIdentity bool `form:"acknowledgeGuessedIdentity"`
}

type schemaResponse struct {
	TableName string                    `json:"tableName"`
	Columns   []models.ColumnDescriptor `json:"columns"`
	Identity  models.Identity           `json:"identity"`
}

func (h *TableHandler) ListTables(c *gin.Context) {
	tables, err := h.schemaService.ListTables(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, http.StatusOK, tables)
}

func (h *TableHandler) GetSchema(c *gin.Context) {
	schema, err := h.schemaService.DescribeTable(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, http.StatusOK, schemaResponse{
		TableName: schema.TableName,
		Columns:   schema.Columns,
		Identity:  schema.Identity,
	})
}

func (h *TableHandler) GetRows(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, apperrors.NewInvalidRequest("page and limit must be integers"))
		return
	}

	page, limit := 1, h.limits.DefaultPageLimit
	if q.Page != nil {
		page = *q.Page
	}
	if q.Limit != nil {
		limit = *q.Limit
	}

	result, err := h.recordService.FetchPage(c.Request.Context(), c.Param("name"), page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, http.StatusOK, result)
}

func (h *TableHandler) InsertRow(c *gin.Context) {
	opts, ok := h.writeOptions(c)
	if !ok {
		return
	}
	fields, err := decodeFields(c.Request.Body)
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.recordService.Insert(c.Request.Context(), c.Param("name"), fields, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, http.StatusCreated, result)
}

func (h *TableHandler) UpdateRow(c *gin.Context) {
	opts, ok := h.writeOptions(c)
	if !ok {
		return
	}
	fields, err := decodeFields(c.Request.Body)
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.recordService.Update(c.Request.Context(), c.Param("name"), c.Param("id"), fields, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, http.StatusOK, result)
}

func (h *TableHandler) DeleteRow(c *gin.Context) {
	opts, ok := h.writeOptions(c)
	if !ok {
		return
	}

	result, err := h.recordService.Delete(c.Request.Context(), c.Param("name"), c.Param("id"), opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, http.StatusOK, result)
}

func (h *TableHandler) writeOptions(c *gin.Context) (services.WriteOptions, bool) {
	var q writeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, apperrors.NewInvalidRequest("acknowledgeGuessedIdentity must be a boolean"))
		return services.WriteOptions{}, false
	}
	return services.WriteOptions{AcknowledgeGuessedIdentity: q.AcknowledgeGuessedIdentity}, true
}

// decodeFields reads a flat JSON object, keeping numbers as json.Number so
// large integers and decimals reach coercion unrounded.
func decodeFields(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.NewInvalidRequest("request body is required")
		}
		return nil, apperrors.NewInvalidRequest("request body must be a JSON object")
	}
	if fields == nil {
		return nil, apperrors.NewInvalidRequest("request body must be a JSON object")
	}
	if dec.More() {
		return nil, apperrors.NewInvalidRequest("request body must contain a single JSON object")
	}
	return fields, nil
}

func (h *TableHandler) fail(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	fields := []any{
		"table", c.Param("name"),
		"kind", kind,
		"error", err,
		"request_id", c.GetString("requestId"),
	}
	switch {
	case kind == apperrors.Internal:
		h.log.Errorw("table request failed", fields...)
	case kind == apperrors.StoreUnavailable:
		h.log.Warnw("table request failed", fields...)
	default:
		h.log.Debugw("table request rejected", fields...)
	}
	responses.Fail(c, err)
}
