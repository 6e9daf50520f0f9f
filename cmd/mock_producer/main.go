package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/imu_scalogram/internal/app"
	"github.com/relabs-tech/imu_scalogram/internal/config"
)

func main() {
	configPath := flag.String("config", "./scalogram_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting mock IMU producer (synthetic → MQTT)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunMockProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
