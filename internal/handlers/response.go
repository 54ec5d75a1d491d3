package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tesseract-hub/enquiry-service/internal/apperrors"
	"github.com/tesseract-hub/enquiry-service/internal/middleware"
	"github.com/tesseract-hub/enquiry-service/internal/models"
)

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondList(c *gin.Context, data interface{}, pagination models.Pagination) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       data,
		"pagination": pagination,
	})
}

// respondError maps an error to its status and writes the error envelope.
// Server-side failures get an error_id that is logged next to the cause.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	kind := apperrors.KindOf(err)
	status := apperrors.HTTPStatus(kind)

	body := gin.H{
		"code":    string(kind),
		"message": apperrors.MessageOf(err),
	}
	if fields := apperrors.FieldsOf(err); len(fields) > 0 {
		body["fields"] = fields
	}
	if status >= http.StatusInternalServerError {
		errorID := uuid.New().String()
		body["error_id"] = errorID
		logger.WithError(err).WithFields(logrus.Fields{
			"error_id":   errorID,
			"request_id": c.GetString(middleware.ContextRequestID),
			"path":       c.FullPath(),
		}).Error("Request failed")
	}

	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

// bindJSON decodes the body into dst, rejecting unknown fields
func bindJSON(c *gin.Context, dst interface{}) error {
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation("request body is required")
		}
		return apperrors.Wrap(err, apperrors.KindValidation, "invalid request body: "+err.Error())
	}
	return nil
}

func pathID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.Validation("invalid "+name, apperrors.Field(name, "must be a positive integer"))
	}
	return uint(id), nil
}

// queryParser collects field errors while reading query parameters
type queryParser struct {
	c      *gin.Context
	fields []apperrors.FieldError
}

func newQueryParser(c *gin.Context) *queryParser {
	return &queryParser{c: c}
}

func (q *queryParser) uintPtr(name string) *uint {
	raw := q.c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		q.fields = append(q.fields, apperrors.Field(name, "must be a positive integer"))
		return nil
	}
	id := uint(v)
	return &id
}

func (q *queryParser) intValue(name string, def int) int {
	raw := q.c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		q.fields = append(q.fields, apperrors.Field(name, "must be an integer"))
		return def
	}
	return v
}

func (q *queryParser) boolValue(name string) bool {
	raw := q.c.Query(name)
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.fields = append(q.fields, apperrors.Field(name, "must be true or false"))
	}
	return v
}

// date accepts RFC3339 timestamps or plain dates
func (q *queryParser) date(name string) *time.Time {
	return q.parseDate(name, false)
}

// dateEnd parses an inclusive upper bound. A bare date covers the whole day.
func (q *queryParser) dateEnd(name string) *time.Time {
	return q.parseDate(name, true)
}

func (q *queryParser) parseDate(name string, endOfDay bool) *time.Time {
	raw := q.c.Query(name)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		if endOfDay {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		return &t
	}
	q.fields = append(q.fields, apperrors.Field(name, fmt.Sprintf("must be a date (%s) or RFC3339 timestamp", time.DateOnly)))
	return nil
}

func (q *queryParser) err() error {
	if len(q.fields) == 0 {
		return nil
	}
	return apperrors.Validation("invalid query parameters", q.fields...)
}
