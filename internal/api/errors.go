package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"stakerLedger/internal/errs"
)

type errorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func abortWithError(c *gin.Context, status int, kind, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, errorResponse{Error: kind, Message: message, Details: details})
}

func badRequest(c *gin.Context, message string) {
	abortWithError(c, http.StatusBadRequest, "BadRequest", message, nil)
}

// writeError maps a ledger error onto a status code and response body.
func writeError(c *gin.Context, err error) {
	kind := errs.Kind(err)
	status, details := classify(err)
	abortWithError(c, status, kind, err.Error(), details)
}

func classify(err error) (int, map[string]interface{}) {
	var (
		notAuthorized   *errs.NotAuthorizedError
		wrongClass      *errs.WrongAssetClassError
		lockup          *errs.LockupNotExpiredError
		initiateFirst   *errs.InitiateUnstakeFirstError
		notTransferable *errs.PositionNotTransferableError
	)
	switch {
	case errors.Is(err, errs.ErrPoolNotFound), errors.Is(err, errs.ErrPositionNotFound):
		return http.StatusNotFound, nil
	case errors.As(err, &notAuthorized):
		return http.StatusForbidden, map[string]interface{}{
			"required": notAuthorized.Required.Hex(),
			"caller":   notAuthorized.Caller.Hex(),
		}
	case errors.As(err, &wrongClass):
		return http.StatusBadRequest, map[string]interface{}{
			"pool_id":    wrongClass.PoolID,
			"pool_class": wrongClass.PoolClass,
			"supplied":   wrongClass.Supplied,
		}
	case errors.Is(err, errs.ErrInvalidAssetClass),
		errors.Is(err, errs.ErrInvalidConfiguration),
		errors.Is(err, errs.ErrNothingToStake),
		errors.Is(err, errs.ErrInvalidRecipient):
		return http.StatusBadRequest, nil
	case errors.As(err, &lockup):
		return http.StatusConflict, map[string]interface{}{"expires_at": lockup.ExpiresAt}
	case errors.As(err, &initiateFirst):
		return http.StatusConflict, map[string]interface{}{"cooldown_seconds": initiateFirst.CooldownSeconds}
	case errors.As(err, &notTransferable):
		return http.StatusConflict, map[string]interface{}{"position_id": notTransferable.PositionID}
	default:
		return http.StatusInternalServerError, nil
	}
}
