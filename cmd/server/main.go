package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/journalkeeper/internal/server"
	"github.com/dmitrijs2005/journalkeeper/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	runErr := app.Run(ctx)

	if err := app.Close(); err != nil {
		log.Printf("close: %v", err)
	}
	if runErr != nil {
		os.Exit(1)
	}
}
