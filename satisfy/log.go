package satisfy

import "github.com/btcsuite/btclog"

// log is the package-level subsystem logger, silent until the embedding
// application wires one in via UseLogger.
var log btclog.Logger

func init() {
	UseLogger(btclog.Disabled)
}

// UseLogger sets the package-wide logger used while planning a satisfaction.
func UseLogger(logger btclog.Logger) {
	log = logger
}
