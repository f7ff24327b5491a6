package main

import (
	"os"

	"github.com/autopeer-io/ota-backend/cmd/otactl/app"
)

func main() {
	if err := app.NewOtactlCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
