// Package guard flips the starter into test mode when imported, so binaries
// exercised from tests skip their runtime side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("STARTER_TEST_MODE") == "" {
			_ = os.Setenv("STARTER_TEST_MODE", "1")
		}
	})
}
