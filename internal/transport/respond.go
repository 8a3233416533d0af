package transport

import (
	"errors"
	"mime/multipart"
	"net/http"

	"recommerce/internal/domain"
	"recommerce/internal/middleware"
	"recommerce/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// respondServiceError maps a service error onto an HTTP status by its domain
// kind. Kind-wrapped errors carry a safe, user-facing message; anything
// unclassified is a 500 and the message is not leaked.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		middleware.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrConflict):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalid):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		middleware.RespondWithError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

// respondDecodeError distinguishes field validation failures from malformed
// JSON when a DecodeAndValidate call fails.
func respondDecodeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	logger.Debug("Request validation failed", zap.Error(err))

	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}

	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
}

// actorID extracts the authenticated user's id placed in the context by the
// auth middleware.
func actorID(r *http.Request) (uuid.UUID, bool) {
	idStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// pathID parses a uuid path parameter already extracted by chi
func pathID(raw string) (uuid.UUID, error) {
	return uuid.Parse(raw)
}

// fileUpload converts one multipart file header into a service upload. The
// caller owns closing via the returned closer.
func fileUpload(header *multipart.FileHeader) (service.ImageUpload, func(), error) {
	file, err := header.Open()
	if err != nil {
		return service.ImageUpload{}, nil, err
	}
	return service.ImageUpload{
		Reader:      file,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, func() { file.Close() }, nil
}
