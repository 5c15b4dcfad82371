// Package testing switches the process into test mode when imported, so no
// test ever dials the configured Postgres, Redis or company API.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("COMPANYADMIN_TEST_MODE", "1")
		if os.Getenv("COMPANY_API_URL") == "" {
			_ = os.Setenv("COMPANY_API_URL", "http://127.0.0.1:0")
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be delegated to from a package's own TestMain.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
