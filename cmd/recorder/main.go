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
	duration := flag.Duration("duration", 0, "recording duration, e.g. 60s (0 records until interrupted)")
	flag.Parse()

	log.Println("starting IMU recorder (source → CSV)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunRecorder(*duration); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
