// Package apierror turns any error a route handler produces into an HTTP
// status and a stable JSON body. It performs no I/O and never logs.
package apierror

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	auditdomain "github.com/smallbiznis/rollcall/internal/audit/domain"
	authdomain "github.com/smallbiznis/rollcall/internal/auth/domain"
	"github.com/smallbiznis/rollcall/internal/authorization"
	coursedomain "github.com/smallbiznis/rollcall/internal/course/domain"
	orgdomain "github.com/smallbiznis/rollcall/internal/organization/domain"
	"github.com/smallbiznis/rollcall/internal/orgcontext"
	"github.com/smallbiznis/rollcall/internal/ratelimit"
	"github.com/smallbiznis/rollcall/internal/storeerr"
	"github.com/smallbiznis/rollcall/internal/tenantcontext"
	"gorm.io/gorm"
)

const (
	CodeValidation        = "validation_error"
	CodeUnauthenticated   = "unauthenticated"
	CodeTenantNotResolved = "tenant_not_resolved"
	CodeForbidden         = "forbidden"
	CodeRateLimited       = "rate_limited"
	CodePermissionDenied  = "permission_denied"
	CodeConflict          = "conflict"
	CodeInvalidReference  = "invalid_reference"
	CodeSchemaOutOfDate   = "schema_out_of_date"
	CodeNotFound          = "not_found"
	CodeInternal          = "internal_error"
)

const (
	hintValidation        = "Correct the listed fields and send the request again."
	hintUnauthenticated   = "Sign in again to obtain a fresh session."
	hintTenantNotResolved = "Create an organization or ask an organization owner to add you as a member, then retry."
	hintForbiddenTenant   = "Pick an organization you belong to, or ask its owner to add you as a member."
	hintForbidden         = "Your role in the active organization does not allow this action. Ask an owner or admin."
	hintRateLimited       = "Too many requests. Wait for the number of seconds in the Retry-After header before retrying."
	hintPermissionDenied  = "Check that you are a member of the active organization and that your role allows this action."
	hintConflict          = "A record with the same unique fields already exists. Check for a duplicate name, slug or membership."
	hintInvalidReference  = "A referenced id does not exist or belongs to a different organization. Use an id from the active organization."
	hintSchemaOutOfDate   = "The database schema is behind the application. Apply pending migrations."
	hintNotFound          = "Check the id. Resources from other organizations are not visible."

	genericInternal = "internal server error"
)

// Body is the JSON error envelope returned to clients.
type Body struct {
	Error   string       `json:"error"`
	Code    string       `json:"code,omitempty"`
	Details []FieldError `json:"details,omitempty"`
	Hint    string       `json:"hint,omitempty"`
}

// domainValidation maps service input errors to the field they concern.
var domainValidation = []struct {
	err     error
	field   string
	message string
}{
	{coursedomain.ErrInvalidTitle, "title", "must not be blank"},
	{orgdomain.ErrInvalidName, "name", "must be between 1 and 120 characters"},
	{orgdomain.ErrInvalidOrganization, "id", "is not a valid organization id"},
	{auditdomain.ErrInvalidPageToken, "page_token", "is not a valid page token"},
}

// Translate maps err to a status and body. Checks run from the most specific
// client error to the generic fallback; the first match wins.
func Translate(err error) (int, Body) {
	if err == nil {
		return http.StatusInternalServerError, Body{Error: genericInternal, Code: CodeInternal}
	}

	if fields, ok := validationFields(err); ok {
		return http.StatusBadRequest, Body{
			Error:   "validation failed",
			Code:    CodeValidation,
			Details: fields,
			Hint:    hintValidation,
		}
	}

	if errors.Is(err, authdomain.ErrUnauthenticated) {
		return http.StatusUnauthorized, Body{Error: "authentication required", Code: CodeUnauthenticated, Hint: hintUnauthenticated}
	}

	if errors.Is(err, tenantcontext.ErrTenantNotResolved) || errors.Is(err, orgcontext.ErrOrgRequired) {
		return http.StatusBadRequest, Body{Error: "no active organization for this session", Code: CodeTenantNotResolved, Hint: hintTenantNotResolved}
	}

	if errors.Is(err, tenantcontext.ErrForbiddenTenant) {
		return http.StatusForbidden, Body{Error: "organization is not accessible", Code: CodeForbidden, Hint: hintForbiddenTenant}
	}
	if errors.Is(err, authorization.ErrForbidden) {
		return http.StatusForbidden, Body{Error: "action not permitted", Code: CodeForbidden, Hint: hintForbidden}
	}

	if errors.Is(err, ratelimit.ErrRateLimited) {
		return http.StatusTooManyRequests, Body{Error: "rate limit exceeded", Code: CodeRateLimited, Hint: hintRateLimited}
	}

	switch storeerr.Classify(err) {
	case storeerr.PermissionDenied:
		return http.StatusForbidden, Body{Error: "permission denied by storage policy", Code: CodePermissionDenied, Hint: hintPermissionDenied}
	case storeerr.UniqueViolation:
		return http.StatusConflict, Body{Error: "record already exists", Code: CodeConflict, Hint: hintConflict}
	case storeerr.ForeignKeyViolation:
		return http.StatusBadRequest, Body{Error: "referenced record not found", Code: CodeInvalidReference, Hint: hintInvalidReference}
	case storeerr.UndefinedColumn:
		return http.StatusBadRequest, Body{Error: "storage schema mismatch", Code: CodeSchemaOutOfDate, Hint: hintSchemaOutOfDate}
	}

	if isNotFound(err) {
		return http.StatusNotFound, Body{Error: "resource not found", Code: CodeNotFound, Hint: hintNotFound}
	}

	msg := err.Error()
	if msg == "" {
		msg = genericInternal
	}
	return http.StatusInternalServerError, Body{Error: msg, Code: CodeInternal}
}

// TranslatePanic handles values recovered from a panic.
func TranslatePanic(v any) (int, Body) {
	if err, ok := v.(error); ok {
		return Translate(err)
	}
	return http.StatusInternalServerError, Body{Error: genericInternal, Code: CodeInternal}
}

func validationFields(err error) ([]FieldError, bool) {
	var own *ValidationErrors
	if errors.As(err, &own) {
		return own.Fields, true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return fromValidator(verrs), true
	}

	for _, v := range domainValidation {
		if errors.Is(err, v.err) {
			return []FieldError{{Field: v.field, Rule: "invalid", Message: v.message}}, true
		}
	}
	return nil, false
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, coursedomain.ErrNotFound) ||
		errors.Is(err, orgdomain.ErrNotFound)
}
