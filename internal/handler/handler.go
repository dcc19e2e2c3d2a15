package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/vitaly-zn/coupons-project-back-end/internal/middleware"
	"github.com/vitaly-zn/coupons-project-back-end/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return
	}
}

// writeError maps err to a status code and error body. Server-side failures
// are reported with their public message only.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	code := model.CodeOf(err)
	md := model.MetadataFor(code)

	message := md.PublicMessage
	var de *model.DomainError
	if md.HTTPStatus < http.StatusInternalServerError && errors.As(err, &de) {
		message = de.Message
	}

	reqID := middleware.RequestIDFrom(r.Context())
	event := logger.Warn()
	if md.HTTPStatus >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Str("code", string(code)).
		Int("status", md.HTTPStatus).
		Str("request_id", reqID).
		Msg("handler error")

	writeJSON(w, md.HTTPStatus, model.ErrorResponse{
		Error:     string(code),
		Message:   message,
		RequestID: reqID,
	})
}

func validationError(format string, args ...any) error {
	return model.NewDomainError(model.ErrCodeValidation, fmt.Sprintf(format, args...))
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, validationError("%s must be a positive integer", name)
	}
	return id, nil
}

// listQuery reads the optional category and maxPrice query parameters.
func listQuery(r *http.Request) (model.ListQuery, error) {
	var q model.ListQuery
	values := r.URL.Query()

	if raw := values.Get("category"); raw != "" {
		category, err := model.ParseCategory(raw)
		if err != nil {
			return q, err
		}
		q.Category = &category
	}

	if raw := values.Get("maxPrice"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return q, validationError("invalid maxPrice parameter")
		}
		q.MaxPrice = &price
	}
	return q, nil
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return validationError("invalid request body: %v", err)
	}
	return nil
}
