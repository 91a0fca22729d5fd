package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/platinummonkey/tenancy/pkg/httputil"
	"github.com/platinummonkey/tenancy/pkg/orgs"
)

// writeServiceError translates service error kinds into HTTP responses.
// Unclassified errors are infrastructure failures; their details stay in the
// logs, not the response.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch orgs.KindOf(err) {
	case orgs.KindNotMember, orgs.KindInsufficientPermission:
		httputil.WriteErrorMessage(w, http.StatusForbidden, err.Error())
	case orgs.KindValidation:
		httputil.WriteErrorMessage(w, http.StatusBadRequest, err.Error())
	case orgs.KindConflict:
		httputil.WriteErrorMessage(w, http.StatusConflict, err.Error())
	case orgs.KindExpiredOrConsumed:
		httputil.WriteErrorMessage(w, http.StatusGone, err.Error())
	case orgs.KindNotFound:
		httputil.WriteErrorMessage(w, http.StatusNotFound, err.Error())
	case orgs.KindRateLimited:
		var svcErr *orgs.Error
		if errors.As(err, &svcErr) && svcErr.RetryAfter > 0 {
			seconds := int(math.Ceil(svcErr.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
		httputil.WriteErrorMessage(w, http.StatusTooManyRequests, err.Error())
	default:
		s.logger.WithError(err).Error("Unhandled service error")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
