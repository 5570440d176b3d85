package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("TIERQUOTE_TEST_MODE", "1")
		if os.Getenv("QUOTE_PRICE_POLICY") == "" {
			_ = os.Setenv("QUOTE_PRICE_POLICY", "strict")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
