package version

import (
	"os"
	"strings"
)

// Version is the service build version, overridable at link time.
var Version = "dev"

// Resolve returns the running version, preferring a VERSION file next to the
// binary (how releases are stamped) over the compiled-in default.
func Resolve() string {
	if data, err := os.ReadFile("VERSION"); err == nil {
		if v := strings.TrimSpace(string(data)); v != "" {
			return v
		}
	}
	return Version
}
