// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package healthcheck

import (
	"context"
	"net/http"

	"github.com/alexliesenfeld/health"
)

func HandleHealthCheckRequest(mux *http.ServeMux, checkFunc func(context.Context) error) {
	healthChecker := health.NewChecker(
		health.WithCheck(health.Check{
			Name:  "rollup-node-health",
			Check: checkFunc,
		}),
	)

	mux.Handle("/health", health.NewHandler(healthChecker))
}
