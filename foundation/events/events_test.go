package events_test

import (
	"testing"

	"github.com/ardanlabs/tipjar/foundation/events"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_Events(t *testing.T) {
	t.Log("Given the need to broadcast component events.")
	{
		t.Logf("\tTest 0:\tWhen two receivers are registered.")
		{
			evts := events.New()
			a := evts.Acquire("a")
			b := evts.Acquire("b")

			if evts.Acquire("a") != a {
				t.Fatalf("\t%s\tTest 0:\tShould return the same channel for the same id.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould return the same channel for the same id.", success)

			evts.Handler("history")("refresh: seq[%d]", 7)

			for _, ch := range []<-chan events.Event{a, b} {
				e := <-ch
				if e.Source != "history" || e.Message != "refresh: seq[7]" || e.Time.IsZero() {
					t.Fatalf("\t%s\tTest 0:\tShould deliver the formatted event: %+v", failed, e)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould deliver the formatted event to everyone.", success)

			if err := evts.Release("a"); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould release a known id: %v", failed, err)
			}
			if _, ok := <-a; ok {
				t.Fatalf("\t%s\tTest 0:\tShould close the released channel.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould close the released channel.", success)

			if err := evts.Release("a"); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould fail to release an unknown id.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould fail to release an unknown id.", success)

			evts.Shutdown()
			if evts.Subscribers() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould drop every receiver on shutdown.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould drop every receiver on shutdown.", success)
		}
	}
}
