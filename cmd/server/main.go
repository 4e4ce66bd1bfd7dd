package main

import (
	"context"
	"log"

	"github.com/nadavital/cauldron/internal/app"
	"github.com/nadavital/cauldron/internal/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	a.Run(ctx)
}
