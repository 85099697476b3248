package main

import (
	"log"

	"github.com/Gsr1989/Aguascalientes/core/cmd"
	"github.com/Gsr1989/Aguascalientes/internal/bot"
)

func main() {
	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return bot.LoadConfig(path)
		},
		Bootstrap: func(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			return bot.NewApp(carrier.CoreConfig())
		},
	})
	if err != nil {
		log.Fatalf("permisobot: %v", err)
	}
}
