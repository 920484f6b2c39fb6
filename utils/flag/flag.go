/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package
*/

package flag

import (
	"flag"
)

const (
	AgentService = "agent"
	APIServer    = "api_server"
)

var (
	ServiceName *string
)

// Only registration happens at init. Parsing is left to the binary entry
// point: calling flag.Parse here would reject the flags the `go test`
// harness injects into test binaries. Readers of ServiceName before parse
// observe the default value.
func init() {
	ServiceName = flag.String("service", AgentService, "'agent' or 'api_server'")
}
