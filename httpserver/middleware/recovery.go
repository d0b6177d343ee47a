/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/restapi"
)

// RecoveryDefaultStackSize defines the default size of stack part which will be logged.
const RecoveryDefaultStackSize = 8192

type recoveryHandler struct {
	next      http.Handler
	errDomain string
	stackSize int
}

// Recovery is a middleware that recovers from panics, logs the panic value and a stacktrace,
// returns 500 HTTP status code and error in body in right format.
func Recovery(errDomain string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return &recoveryHandler{next: next, errDomain: errDomain, stackSize: RecoveryDefaultStackSize}
	}
}

func (h *recoveryHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		logger := GetLoggerFromContext(r.Context())
		if p == http.ErrAbortHandler { //nolint:errorlint
			// http.Server does not log a stack trace for this sentinel, the panic is propagated as is.
			if logger != nil {
				logger.Warn("request has been aborted", log.Error(http.ErrAbortHandler))
			}
			panic(p)
		}
		if logger != nil {
			stack := make([]byte, h.stackSize)
			stack = stack[:runtime.Stack(stack, false)]
			logger.Error(fmt.Sprintf("Panic: %+v", p), log.String("stack", string(stack)))
		}
		restapi.RespondInternalError(rw, h.errDomain, logger)
	}()

	h.next.ServeHTTP(rw, r)
}
