package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/shmeleva/TiKGingerbreadBot/app"
	corecmd "github.com/shmeleva/TiKGingerbreadBot/core/cmd"
)

func main() {
	// Local development convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.LoadConfig(path)
		},
		Bootstrap: app.Bootstrap,
	})
	if err != nil {
		log.Fatalf("gingerbread: %v", err)
	}
}
