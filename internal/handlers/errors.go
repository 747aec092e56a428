package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/unica-api/internal/categories"
	"github.com/yukikurage/unica-api/internal/database"
	apierrors "github.com/yukikurage/unica-api/internal/errors"
	"github.com/yukikurage/unica-api/internal/properties"
	"github.com/yukikurage/unica-api/internal/sequence"
	"github.com/yukikurage/unica-api/internal/services"
	"go.uber.org/zap"
)

// respondError maps service layer errors to HTTP responses. Anything it does
// not recognise is logged and answered with 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		schemaErr *properties.SchemaError
		dupErr    *categories.DuplicateError
	)

	switch {
	case errors.Is(err, properties.ErrTypeConflict):
		apierrors.TypeConflict(c, err.Error())

	case errors.As(err, &dupErr):
		code := apierrors.ErrCodeDuplicateName
		if errors.Is(err, categories.ErrDuplicateID) {
			code = apierrors.ErrCodeDuplicateID
		}
		apierrors.BadRequestWithCode(c, code, err.Error(), gin.H{"field": dupErr.Field, "value": dupErr.Value})

	case errors.As(err, &schemaErr):
		apierrors.BadRequestWithDetails(c, err.Error(), gin.H{"path": schemaErr.Path})

	case errors.Is(err, properties.ErrInvalidValue):
		apierrors.BadRequest(c, err.Error())

	case errors.Is(err, services.ErrPinLimitExceeded):
		apierrors.LimitExceeded(c, err.Error())

	case errors.Is(err, database.ErrTransientFailure):
		logger.Warn("Transaction gave up after retries", zap.String("path", c.FullPath()), zap.Error(err))
		apierrors.TransientFailure(c)

	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.Unauthorized(c, err.Error())

	case errors.Is(err, services.ErrNotCommentAuthor),
		errors.Is(err, services.ErrNotOrganizationOwner),
		errors.Is(err, services.ErrProjectAccessDenied):
		apierrors.Forbidden(c, err.Error())

	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrOrganizationNotFound),
		errors.Is(err, services.ErrOrganizationMemberNotFound),
		errors.Is(err, services.ErrInvitationNotFound),
		errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrCollectionNotFound),
		errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrDiscussionNotFound),
		errors.Is(err, services.ErrCategoryNotFound),
		errors.Is(err, services.ErrTopicNotFound),
		errors.Is(err, services.ErrCommentNotFound),
		errors.Is(err, sequence.ErrParentNotFound):
		apierrors.NotFound(c, err.Error())

	case errors.Is(err, services.ErrUsernameTaken),
		errors.Is(err, services.ErrAlreadyOrganizationMember),
		errors.Is(err, services.ErrCategoryExists):
		apierrors.Conflict(c, err.Error())

	case errors.Is(err, services.ErrLastOwner):
		apierrors.BadRequestWithCode(c, apierrors.ErrCodeInvalidOperation, err.Error(), nil)

	case errors.Is(err, services.ErrUsernameRequired),
		errors.Is(err, services.ErrUsernameTooLong),
		errors.Is(err, services.ErrPasswordTooShort),
		errors.Is(err, services.ErrInvalidOrganizationName),
		errors.Is(err, services.ErrDescriptionTooLong),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrInvalidProjectName),
		errors.Is(err, services.ErrInvalidProjectOwner),
		errors.Is(err, services.ErrInvalidTaskTitle),
		errors.Is(err, services.ErrNoTaskIDsProvided),
		errors.Is(err, services.ErrPropertyNameRequired),
		errors.Is(err, services.ErrDiscussionAlreadyEnabled),
		errors.Is(err, services.ErrInvalidTopicTitle),
		errors.Is(err, services.ErrCommentRequired):
		apierrors.BadRequest(c, err.Error())

	default:
		logger.Error("Unhandled service error", zap.String("path", c.FullPath()), zap.Error(err))
		apierrors.InternalError(c, "")
	}
}

// localIDParam parses a positive per-parent id from the named path parameter.
func localIDParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id < 1 {
		apierrors.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// uintParam parses a storage id from the named path parameter.
func uintParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}
