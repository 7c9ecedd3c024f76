package main

import (
	"context"

	"midas/cmd/midas/commands"
	"midas/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "midas")
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
