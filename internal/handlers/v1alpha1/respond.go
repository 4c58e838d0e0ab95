package v1alpha1

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/service"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/requestid"
)

func respond(w http.ResponseWriter, r *http.Request, status int, payload any) {
	render.Status(r, status)
	render.JSON(w, r, payload)
}

// respondError maps service error types onto the error envelope. Unknown
// errors become opaque 500s; their details stay in the logs.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	label := "internal_error"
	message := "internal server error"

	var (
		notFound   *service.ErrResourceNotFound
		validation *service.ErrValidation
		conflict   *service.ErrConflict
		notReady   *service.ErrOutputNotReady
		expired    *service.ErrOutputExpired
	)
	switch {
	case errors.As(err, &notFound):
		status, label, message = http.StatusNotFound, "not_found", err.Error()
	case errors.As(err, &validation):
		status, label, message = http.StatusBadRequest, "validation_failed", err.Error()
	case errors.As(err, &conflict):
		status, label, message = http.StatusConflict, "conflict", err.Error()
	case errors.As(err, &notReady):
		status, label, message = http.StatusConflict, "output_not_ready", err.Error()
	case errors.As(err, &expired):
		status, label, message = http.StatusGone, "output_expired", err.Error()
	default:
		zap.S().Named("api").Errorw("request failed",
			"path", r.URL.Path, "requestId", requestid.FromRequest(r), "error", err)
	}

	respond(w, r, status, api.Error{
		Error:     label,
		Message:   message,
		RequestId: requestid.FromContextPtr(r.Context()),
	})
}

// pathID parses the {id} path parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (oid.ID, bool) {
	id, err := oid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, service.NewErrValidation("invalid id: %s", err))
		return oid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		respondError(w, r, service.NewErrValidation("invalid request body: %s", err))
		return false
	}
	return true
}
