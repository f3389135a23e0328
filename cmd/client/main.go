package main

import (
	"context"
	"log"

	"github.com/dkozyrev/jobport/internal/cli"
	"github.com/dkozyrev/jobport/internal/config"
)

func main() {

	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(context.Background())

}
