package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/tipjar/app/services/tipjar/handlers"
	"github.com/ardanlabs/tipjar/business/core/jar"
	"github.com/ardanlabs/tipjar/business/sys/metrics"
	"github.com/ardanlabs/tipjar/business/web/errs"
	"github.com/ardanlabs/tipjar/foundation/events"
	"github.com/ardanlabs/tipjar/foundation/nameservice"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger/memory"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

var (
	jarAddr   = common.HexToAddress("0x6Fe6CF3c8fF57c58d24BfC869668F48BCbDb3BD9")
	ownerAddr = common.HexToAddress("0xFef311483Cc040e1A89fb9bb469eeB8A70935EF8")
	userAddr  = common.HexToAddress("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
)

type service struct {
	mux    http.Handler
	debug  http.Handler
	ledger *memory.Ledger
	jar    *jar.Jar
}

func newService(t *testing.T, settings ledger.Settings) service {
	ctx := context.Background()
	log := zap.NewNop().Sugar()
	l := memory.New(jarAddr, ownerAddr, userAddr)

	j, err := jar.New(ctx, jar.Config{
		Settings:     settings,
		Ledger:       l,
		Transport:    l,
		Wallet:       userAddr,
		PollInterval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould construct the jar: %v", failed, err)
	}
	if err := j.Start(ctx); err != nil {
		t.Fatalf("\t%s\tShould start the jar: %v", failed, err)
	}
	t.Cleanup(j.Shutdown)

	ns, _ := nameservice.New("")
	reg := prometheus.NewRegistry()

	mux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      log,
		Jar:      j,
		NS:       ns,
		Metrics:  metrics.NewMetrics(reg),
		Evts:     events.New(),
	})

	return service{
		mux:    mux,
		debug:  handlers.DebugMux("test", log, j, reg),
		ledger: l,
		jar:    j,
	}
}

func (s service) do(method string, path string, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, r)
	return w
}

// =============================================================================

func Test_TipRoutes(t *testing.T) {
	t.Log("Given the need to tip through the web API.")
	{
		t.Logf("\tTest 0:\tWhen a valid tip is posted and mined.")
		{
			s := newService(t, ledger.Settings{Address: jarAddr.Hex()})

			w := s.do(http.MethodPost, "/v1/tips/submit", `{"name":"Ada","message":"","amount":"0.1"}`)
			if w.Code != http.StatusCreated {
				t.Fatalf("\t%s\tTest 0:\tShould accept the tip, got %d: %s", failed, w.Code, w.Body.String())
			}
			t.Logf("\t%s\tTest 0:\tShould accept the tip.", success)

			s.ledger.MineBlock()

			var tips []struct {
				Name      string `json:"name"`
				Amount    string `json:"amount"`
				AmountWei string `json:"amount_wei"`
			}

			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				w = s.do(http.MethodGet, "/v1/tips/list", "")
				json.NewDecoder(w.Body).Decode(&tips)
				if len(tips) == 1 {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}

			if len(tips) != 1 || tips[0].Name != "Ada" || tips[0].Amount != "0.1" || tips[0].AmountWei != "100000000000000000" {
				t.Fatalf("\t%s\tTest 0:\tShould list the mined tip: %+v", failed, tips)
			}
			t.Logf("\t%s\tTest 0:\tShould list the mined tip.", success)

			w = s.do(http.MethodGet, "/v1/tx/status", "")
			if !strings.Contains(w.Body.String(), `"confirmed"`) {
				t.Fatalf("\t%s\tTest 0:\tShould report the tip as confirmed: %s", failed, w.Body.String())
			}
			t.Logf("\t%s\tTest 0:\tShould report the tip as confirmed.", success)

			w = s.do(http.MethodGet, "/v1/tx/status?kind=refund", "")
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 0:\tShould reject an unknown transaction kind, got %d.", failed, w.Code)
			}
			t.Logf("\t%s\tTest 0:\tShould reject an unknown transaction kind.", success)
		}

		t.Logf("\tTest 1:\tWhen an invalid tip is posted.")
		{
			s := newService(t, ledger.Settings{Address: jarAddr.Hex()})

			w := s.do(http.MethodPost, "/v1/tips/submit", `{"name":"Ada","amount":"abc"}`)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 1:\tShould reject the tip, got %d.", failed, w.Code)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the tip.", success)

			var resp errs.Response
			json.NewDecoder(w.Body).Decode(&resp)
			if resp.Error == "" || s.ledger.Submissions() != 0 {
				t.Fatalf("\t%s\tTest 1:\tShould explain without calling the ledger: %+v", failed, resp)
			}
			t.Logf("\t%s\tTest 1:\tShould explain without calling the ledger.", success)
		}
	}
}

func Test_NotConfiguredRoutes(t *testing.T) {
	t.Log("Given the need to warn when the ledger address is unset.")
	{
		t.Logf("\tTest 0:\tWhen any tip route is called.")
		{
			s := newService(t, ledger.Settings{})

			routes := []struct {
				method string
				path   string
				body   string
			}{
				{http.MethodGet, "/v1/tips/list", ""},
				{http.MethodGet, "/v1/memos/list", ""},
				{http.MethodPost, "/v1/tips/submit", `{"name":"Ada","amount":"0.1"}`},
				{http.MethodGet, "/v1/withdraw/status", ""},
				{http.MethodPost, "/v1/withdraw", ""},
			}

			for _, rt := range routes {
				w := s.do(rt.method, rt.path, rt.body)
				if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "not configured") {
					t.Fatalf("\t%s\tTest 0:\tShould answer %s %s with the warning, got %d.", failed, rt.method, rt.path, w.Code)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould answer every route with the warning.", success)

			if s.ledger.Submissions() != 0 || s.ledger.Reads() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould not call the ledger.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould not call the ledger.", success)

			w := s.do(http.MethodGet, "/v1/status", "")
			if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "not configured") {
				t.Fatalf("\t%s\tTest 0:\tShould show the warning in the status: %s", failed, w.Body.String())
			}
			t.Logf("\t%s\tTest 0:\tShould show the warning in the status.", success)
		}
	}
}

func Test_DebugRoutes(t *testing.T) {
	t.Log("Given the need to check the health of the service.")
	{
		t.Logf("\tTest 0:\tWhen the readiness, liveness and metrics routes are called.")
		{
			s := newService(t, ledger.Settings{Address: jarAddr.Hex()})
			s.do(http.MethodGet, "/v1/status", "")

			for _, path := range []string{"/debug/readiness", "/debug/liveness", "/metrics"} {
				r := httptest.NewRequest(http.MethodGet, path, nil)
				w := httptest.NewRecorder()
				s.debug.ServeHTTP(w, r)

				if w.Code != http.StatusOK {
					t.Fatalf("\t%s\tTest 0:\tShould answer %s, got %d.", failed, path, w.Code)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould answer every debug route.", success)
		}
	}
}
