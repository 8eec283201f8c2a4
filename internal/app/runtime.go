package app

import (
	"os"
	"strconv"
)

// TestModeEnv is set by test helpers so binaries started under `go test`
// return before touching real infrastructure.
const TestModeEnv = "ORDERBRIDGE_TEST_MODE"

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	return on
}
