package main

import (
	"github.com/labops/runcontrol/cmd"
	"github.com/labops/runcontrol/pkg/env"
	"github.com/labops/runcontrol/pkg/log"
)

func main() {
	if err := env.Process(); err != nil {
		log.Fatal("environment failure", "error", err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal("runcontrol failure", "error", err)
	}
}
