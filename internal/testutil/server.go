// A shared test server setup utility, which simplifies integration tests
// against the in-process service simulator.

package testutil

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vrsandeep/tubeindex/internal/simulator"
)

// SetupSimulator starts a simulated transcript service on an httptest server
// and returns it together with its base URL. Both are torn down with the test.
func SetupSimulator(t *testing.T, stepDelay time.Duration) (*simulator.Server, string) {
	t.Helper()

	sim := simulator.New(stepDelay)
	ts := httptest.NewServer(sim.Router())

	t.Cleanup(func() {
		ts.Close()
		sim.Close()
	})

	return sim, ts.URL
}
