package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/ota-backend/cmd/ota-backend/app"
)

func main() {
	app.NewApp().Run()
}
