package main

import (
	"log"

	"github.com/jktrn/MemoLanes/internal/app"
	"github.com/jktrn/MemoLanes/pkg/config"
)

// version is the short commit hash, set with
// -ldflags "-X main.version=$(git rev-parse --short HEAD)".
var version = "dev"

func main() {
	realMain()
}

func realMain() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalln("failed to load config: ", err)
	}

	app.Run(cfg, version)
}
