package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/tipjar/app/services/tipjar/handlers"
	"github.com/ardanlabs/tipjar/business/core/jar"
	"github.com/ardanlabs/tipjar/business/sys/metrics"
	"github.com/ardanlabs/tipjar/foundation/events"
	"github.com/ardanlabs/tipjar/foundation/logger"
	"github.com/ardanlabs/tipjar/foundation/nameservice"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger/evm"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger/memory"
	"github.com/ardanlabs/tipjar/foundation/tipjar/tracker"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("TIPJAR")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			CorsOrigin      string        `conf:"default:*"`
		}
		Ledger ledgerConfig
		Wallet struct {
			Name string `conf:"default:kennedy"`
		}
		Tracker struct {
			PollInterval time.Duration `conf:"default:2s"`
			Timeout      time.Duration `conf:"default:15m"`
		}
		History struct {
			Limit int `conf:"default:3"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "tip jar service",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "TIPJAR"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The nameservice package provides name resolution for tip senders.
	// The names come from the file names in the accounts folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	// Logging the accounts for documentation in the logs.
	for account, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "account", account)
	}

	// =========================================================================
	// Event Support

	// The tip jar packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	send := evts.Handler("tipjar")
	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...), "traceid", "00000000-0000-0000-0000-000000000000")
		send(v, args...)
	}

	// =========================================================================
	// Ledger Support

	// The ledger address is validated once. A missing address is a warning
	// that disables every action, a malformed one stops the service.
	settings := ledger.Settings{Address: cfg.Ledger.Address}
	if err := settings.Validate(); err != nil {
		if !errors.Is(err, ledger.ErrNotConfigured) {
			return err
		}
		log.Warnw("startup", "status", "ledger disabled", "WARNING", settings.Warning())
	}

	// The wallet key is optional. Without it the service runs read only.
	path := filepath.Join(cfg.NameService.Folder, cfg.Wallet.Name+".ecdsa")
	privateKey, err := crypto.LoadECDSA(path)
	if err != nil {
		log.Warnw("startup", "status", "no wallet connected", "path", path, "ERROR", err)
		privateKey = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, transport, wallet, err := openLedger(ctx, log, cfg.Ledger, settings, privateKey, ev)
	if err != nil {
		return err
	}

	// =========================================================================
	// Metrics Support

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mtr := metrics.NewMetrics(reg)

	// =========================================================================
	// Tip Jar Support

	j, err := jar.New(ctx, jar.Config{
		Settings:     settings,
		Ledger:       l,
		Transport:    transport,
		Wallet:       wallet,
		HistoryLimit: cfg.History.Limit,
		PollInterval: cfg.Tracker.PollInterval,
		PollTimeout:  cfg.Tracker.Timeout,
		OnFinal: func(kind string, tx tracker.PendingTransaction) {
			mtr.RecordFinal(tx.Phase.String())
			log.Infow("transaction final", "kind", kind, "tx", tx.Handle.Hex(), "phase", tx.Phase, "reason", tx.Reason)
		},
		EvHandler: ev,
	})
	if err != nil {
		return fmt.Errorf("constructing tip jar: %w", err)
	}

	mtr.RegisterHistory(j.History.Stats)

	if err := j.Start(ctx); err != nil {
		return fmt.Errorf("starting tip jar: %w", err)
	}
	defer j.Shutdown()

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, j, reg)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown:   shutdown,
		Log:        log,
		Jar:        j,
		NS:         ns,
		Metrics:    mtr,
		Evts:       evts,
		CorsOrigin: cfg.Web.CorsOrigin,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// ledgerConfig selects and configures the ledger backend.
type ledgerConfig struct {
	Backend   string        `conf:"default:evm,help:evm or memory"`
	Address   string        `conf:"help:address of the deployed tip jar contract"`
	RPCURL    string        `conf:"default:http://localhost:8545"`
	BlockPoll time.Duration `conf:"default:2s"`
	Owner     string        `conf:"default:0xFef311483Cc040e1A89fb9bb469eeB8A70935EF8,help:beneficiary of the memory backend"`
	MineEvery time.Duration `conf:"default:5s,help:block time of the memory backend"`
}

// openLedger constructs the configured ledger backend. Nothing is opened
// when the ledger address is not configured.
func openLedger(ctx context.Context, log *zap.SugaredLogger, lc ledgerConfig, settings ledger.Settings, privateKey *ecdsa.PrivateKey, ev func(v string, args ...any)) (ledger.Ledger, ledger.Transport, common.Address, error) {
	var wallet common.Address
	if privateKey != nil {
		wallet = crypto.PubkeyToAddress(privateKey.PublicKey)
	}

	if !settings.Configured() {
		return nil, nil, wallet, nil
	}

	switch lc.Backend {
	case "memory":
		if !common.IsHexAddress(lc.Owner) {
			return nil, nil, wallet, fmt.Errorf("memory ledger owner %q is not a valid hex address", lc.Owner)
		}

		l := memory.New(settings.LedgerAddress(), common.HexToAddress(lc.Owner), wallet)
		go l.MineEvery(ctx, lc.MineEvery)

		log.Infow("startup", "status", "memory ledger", "address", l.Address(), "owner", lc.Owner, "mineEvery", lc.MineEvery)
		return l, l, wallet, nil

	case "evm":
		client, err := evm.Dial(ctx, lc.RPCURL)
		if err != nil {
			return nil, nil, wallet, err
		}

		l, err := evm.New(ctx, evm.Config{
			Client:     client,
			Address:    settings.LedgerAddress(),
			PrivateKey: privateKey,
			BlockPoll:  lc.BlockPoll,
			EvHandler:  ev,
		})
		if err != nil {
			return nil, nil, wallet, err
		}

		log.Infow("startup", "status", "evm ledger", "address", l.Address(), "chainID", l.ChainID(), "wallet", l.From())
		return l, l, wallet, nil
	}

	return nil, nil, wallet, fmt.Errorf("unknown ledger backend %q", lc.Backend)
}
