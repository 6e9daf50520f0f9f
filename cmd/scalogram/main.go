// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/imu_scalogram/internal/app"
	"github.com/relabs-tech/imu_scalogram/internal/config"
)

func main() {
	configPath := flag.String("config", "./scalogram_config.txt", "path to configuration file (KEY=VALUE or .yaml)")
	flag.Parse()

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunScalogram(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
