package main

import (
	"flag"
	"os"

	"Reel/config"
	"Reel/server"
	"Reel/service/source"

	"github.com/kataras/golog"
)

func main() {
	configPath := flag.String(`config`, `reel.toml`, `path to the daemon configuration file`)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		golog.Fatal(err)
	}
	golog.SetTimeFormat(`2006/01/02 15:04:05`)
	golog.SetLevel(cfg.Log.Level)
	golog.Infof(`reel %s starting on %s`, config.Commit, cfg.Server.Addr)

	provider := source.NewSystemProvider(cfg.Record.DisplayIndex)
	if err := server.Run(cfg, provider); err != nil {
		golog.Error(err)
		os.Exit(1)
	}
}
