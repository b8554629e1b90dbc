package mid

import (
	"context"
	"net/http"
	"time"

	"github.com/ardanlabs/tipjar/business/sys/metrics"
	"github.com/ardanlabs/tipjar/foundation/web"
)

// Metrics records the duration and status code of every request. It must sit
// outside of Errors so the status code of handled errors is known.
func Metrics(m *metrics.Metrics) web.Middleware {

	// This is the actual middleware function to be executed.
	mw := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v, err := web.GetValues(ctx)
			if err != nil {
				return web.NewShutdownError("web value missing from context")
			}

			err = handler(ctx, w, r)

			status := v.StatusCode
			switch {
			case err != nil:
				status = http.StatusInternalServerError
			case status == 0:
				status = http.StatusOK
			}

			m.RecordHTTPRequest(v.Path, r.Method, status, time.Since(v.Now))

			return err
		}

		return h
	}

	return mw
}
