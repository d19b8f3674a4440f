// Package guard flips the runtime into test mode when imported from a
// test binary, so no goroutines or listeners start by accident.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CATSYNC_TEST_MODE") == "" {
			_ = os.Setenv("CATSYNC_TEST_MODE", "1")
		}
	})
}
