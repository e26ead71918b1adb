// Package content manages the single-document entities that engagement
// points at: videos, comments, tweets and playlists. Every mutation checks
// ids, then existence, then ownership.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"vidtube/internal/apperr"
	"vidtube/internal/ids"
	"vidtube/internal/models"
	"vidtube/internal/observability/logging"
	"vidtube/internal/storage"

	"github.com/go-playground/validator/v10"
)

// Store is the slice of the repository content operations need.
type Store interface {
	storage.UserRepository
	storage.ContentRepository
	VideoComments(ctx context.Context, videoID, viewerID string, window storage.Window) ([]models.CommentView, error)
	CountComments(ctx context.Context, videoID string) (int64, error)
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type Service struct {
	store    Store
	validate *validator.Validate
	logger   *slog.Logger
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		validate: newValidator(),
		logger:   logging.WithComponent(slog.Default(), "content"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	mustRegisterValidation(v, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

func mustRegisterValidation(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("content: register %q validation: %v", tag, err))
	}
}

// check validates input and reports the first failing field as an invalid
// argument.
func (s *Service) check(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Invalid("invalid request")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required", "notblank":
		return apperr.Invalid("%s is required", fe.Field())
	case "max":
		return apperr.Invalid("%s must be at most %s characters", fe.Field(), fe.Param())
	case "url":
		return apperr.Invalid("%s must be a valid URL", fe.Field())
	case "gte":
		return apperr.Invalid("%s must not be negative", fe.Field())
	case "oneof":
		return apperr.Invalid("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return apperr.Invalid("%s is invalid", fe.Field())
	}
}

func requireActor(actingUserID string) error {
	if actingUserID == "" {
		return apperr.Unauthorized("authentication required")
	}
	return nil
}

func requireID(id, subject string) error {
	if !ids.Valid(id) {
		return apperr.Invalid("invalid %s id", subject)
	}
	return nil
}

// fail maps a store error for subject onto the application taxonomy.
func (s *Service) fail(ctx context.Context, err error, subject string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("%s not found", subject)
	}
	logging.WithContext(ctx, s.logger).Error("content store failure", "subject", subject, "error", err)
	return apperr.Internal(err, "%s", subject)
}

func forbidden(action, subject string) error {
	return apperr.Forbidden("you are not allowed to %s this %s", action, subject)
}
