// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"
	"sync"

	"github.com/ardanlabs/tipjar/app/services/tipjar/handlers/v1/tipgrp"
	"github.com/ardanlabs/tipjar/business/core/jar"
	"github.com/ardanlabs/tipjar/business/sys/metrics"
	"github.com/ardanlabs/tipjar/foundation/events"
	"github.com/ardanlabs/tipjar/foundation/nameservice"
	"github.com/ardanlabs/tipjar/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log     *zap.SugaredLogger
	Jar     *jar.Jar
	NS      *nameservice.NameService
	Metrics *metrics.Metrics
	Evts    *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	tgh := tipgrp.Handlers{
		Log:     cfg.Log,
		Jar:     cfg.Jar,
		NS:      cfg.NS,
		Metrics: cfg.Metrics,
		WS:      websocket.Upgrader{},
		Evts:    cfg.Evts,
		FormMu:  &sync.Mutex{},
	}

	app.Handle(http.MethodGet, version, "/events", tgh.Events)
	app.Handle(http.MethodGet, version, "/status", tgh.Status)
	app.Handle(http.MethodGet, version, "/tips/list", tgh.Tips)
	app.Handle(http.MethodGet, version, "/memos/list", tgh.Memos)
	app.Handle(http.MethodPost, version, "/tips/submit", tgh.Submit)
	app.Handle(http.MethodGet, version, "/tx/status", tgh.TxStatus)
	app.Handle(http.MethodGet, version, "/withdraw/status", tgh.WithdrawStatus)
	app.Handle(http.MethodPost, version, "/withdraw", tgh.Withdraw)
}
