package main

import (
	"eventharvest-backend/cmd/harvest/commands"
	"eventharvest-backend/lib/osutil"
	"eventharvest-backend/lib/telemetry"
)

func main() {
	ctx := osutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "harvest")
	telemetry.InstrumentPerfStats(ctx)
	commands.ExecuteContext(ctx)
}
