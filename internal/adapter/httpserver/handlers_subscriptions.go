package httpserver

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/newsletter/internal/domain"
	apperrors "github.com/pscheid92/newsletter/internal/platform/errors"
)

// subscribeRequest is the wire form. Pointers distinguish an absent field
// (nil) from an empty one, so required only rejects absence.
type subscribeRequest struct {
	Email *string `form:"email" validate:"required"`
	Name  *string `form:"name" validate:"required"`
}

func newSubscribeRequest(values url.Values) subscribeRequest {
	var req subscribeRequest
	if values.Has("email") {
		email := values.Get("email")
		req.Email = &email
	}
	if values.Has("name") {
		name := values.Get("name")
		req.Name = &name
	}
	return req
}

// handleSubscribe decodes a urlencoded name/email form and stores it. Decode
// and presence failures never reach the database.
func (s *Server) handleSubscribe(c echo.Context) error {
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if mediaType, _, err := mime.ParseMediaType(contentType); err != nil || mediaType != echo.MIMEApplicationForm {
		return apperrors.ValidationError("unsupported content type").
			WithField("content_type", contentType)
	}

	if err := c.Request().ParseForm(); err != nil {
		return apperrors.ValidationError("failed to decode subscription form").
			WithField("decode_error", err.Error())
	}

	req := newSubscribeRequest(c.Request().PostForm)
	if err := c.Validate(&req); err != nil {
		return apperrors.ValidationError("incomplete subscription form").
			WithField("missing", missingFields(err))
	}

	form := domain.SubscriptionForm{Email: *req.Email, Name: *req.Name}
	if _, err := s.subscriptions.Subscribe(c.Request().Context(), form); err != nil {
		return apperrors.InternalError("failed to store subscription", err)
	}

	return c.NoContent(http.StatusOK)
}

type formValidator struct {
	validate *validator.Validate
}

func newFormValidator() *formValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("form"), ",")
		if name == "" {
			return field.Name
		}
		return name
	})
	return &formValidator{validate: v}
}

func (fv *formValidator) Validate(i any) error {
	return fv.validate.Struct(i)
}

func missingFields(err error) []string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field())
	}
	return fields
}
