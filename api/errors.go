package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"gitlab.com/gfxd/gpu-mode-service/gfx"
	"gitlab.com/gfxd/gpu-mode-service/models"
)

type ProblemDetail struct {
	Type           string                `json:"type,omitempty" validate:"uri"`
	Status         int                   `json:"status,omitempty"`
	Title          string                `json:"title,omitempty"`
	Detail         string                `json:"detail,omitempty"`
	Instance       string                `json:"instance,omitempty" validate:"uri"`
	RequiredAction models.RequiredAction `json:"required_action,omitempty"`
	Errors         []ErrorDetail         `json:"errors,omitempty"`
}

type ErrorDetail struct {
	Detail  string `json:"detail"`
	Pointer string `json:"pointer"`
}

type ProblemOption func(*ProblemDetail)

func NewProblemDetail(options ...ProblemOption) ProblemDetail {
	problem := ProblemDetail{}
	for _, option := range options {
		option(&problem)
	}
	return problem
}

func WithStatus(s int) ProblemOption {
	return func(p *ProblemDetail) {
		p.Status = s
	}
}

func WithTitle(t string) ProblemOption {
	return func(p *ProblemDetail) {
		p.Title = t
	}
}

func WithDetail(d string) ProblemOption {
	return func(p *ProblemDetail) {
		p.Detail = d
	}
}

func WithInstance(i string) ProblemOption {
	return func(p *ProblemDetail) {
		p.Instance = i
	}
}

func WithRequiredAction(a models.RequiredAction) ProblemOption {
	return func(p *ProblemDetail) {
		p.RequiredAction = a
	}
}

func WithErrors(e []ErrorDetail) ProblemOption {
	return func(p *ProblemDetail) {
		p.Errors = e
	}
}

func NewValidationProblem(e error) ProblemDetail {
	return NewProblemDetail(
		WithStatus(http.StatusBadRequest),
		WithTitle("Input Validation Error"),
		WithDetail("Your request body has invalid parameters."),
		WithErrors(readableErrors(e)),
	)
}

func NewEmptyBodyProblem() ProblemDetail {
	return NewProblemDetail(
		WithStatus(http.StatusBadRequest),
		WithTitle("Empty Request Body"),
		WithDetail("Your request did not include a body."),
	)
}

// NewModeProblem maps a controller error to a problem. Refusals are conflicts with the
// current state, anything else failed while the system was being changed.
func NewModeProblem(err error, instance string) ProblemDetail {
	var action models.RequiredAction
	var reqErr *gfx.RequestError
	if errors.As(err, &reqErr) {
		action = reqErr.Action
	}

	status, title := http.StatusInternalServerError, "Mode Change Failed"
	switch {
	case errors.Is(err, gfx.ErrInvalidMode):
		status, title = http.StatusBadRequest, "Invalid Mode"
	case errors.Is(err, gfx.ErrMustBeIntegratedFirst),
		errors.Is(err, gfx.ErrHardwareGuard),
		errors.Is(err, gfx.ErrVfioDisabled),
		errors.Is(err, gfx.ErrModeChanged):
		status, title = http.StatusConflict, "Mode Change Refused"
	}

	return NewProblemDetail(
		WithStatus(status),
		WithTitle(title),
		WithDetail(err.Error()),
		WithInstance(instance),
		WithRequiredAction(action),
	)
}

func readableErrors(err error) []ErrorDetail {
	var details []ErrorDetail
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			detail := "is invalid"
			if e.Tag() == "required" {
				detail = "is required"
			}
			details = append(details, ErrorDetail{Detail: detail, Pointer: "#/" + strings.ToLower(e.Field())})
		}
	}
	return details
}
