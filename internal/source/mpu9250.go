package source

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/imu_scalogram/internal/imu"
)

// MPU9250Options locates the IMU on the SPI bus.
type MPU9250Options struct {
	SPIDevice string        // e.g. /dev/spidev0.0
	CSPin     string        // GPIO name of the chip select line
	Interval  time.Duration // sample period
	Channels  []string      // any of ax,ay,az,gx,gy,gz
	Calibrate bool
}

// MPU9250 samples accelerometer and gyroscope registers on a ticker.
type MPU9250 struct {
	dev      *mpu9250.MPU9250
	name     string
	readers  []func() (int16, error)
	ticker   *time.Ticker
	clk      clock
	channels []string
}

// OpenMPU9250 initializes the periph host and the IMU.
func OpenMPU9250(opts MPU9250Options, logger *zap.Logger) (*MPU9250, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("mpu9250 source: sample interval must be positive")
	}

	// Initialize periph host once.
	if _, err := host.Init(); err != nil {
		return nil, &imu.DeviceError{Device: opts.SPIDevice, Err: fmt.Errorf("periph host init: %w", err)}
	}

	cs := gpioreg.ByName(opts.CSPin)
	if cs == nil {
		return nil, &imu.DeviceError{Device: opts.SPIDevice, Err: fmt.Errorf("CS pin %q not found", opts.CSPin)}
	}

	tr, err := mpu9250.NewSpiTransport(opts.SPIDevice, cs)
	if err != nil {
		return nil, &imu.DeviceError{Device: opts.SPIDevice, Err: fmt.Errorf("SPI transport: %w", err)}
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, &imu.DeviceError{Device: opts.SPIDevice, Err: fmt.Errorf("new device: %w", err)}
	}
	if err := dev.Init(); err != nil {
		return nil, &imu.DeviceError{Device: opts.SPIDevice, Err: fmt.Errorf("init: %w", err)}
	}
	if opts.Calibrate {
		if err := dev.Calibrate(); err != nil {
			return nil, &imu.DeviceError{Device: opts.SPIDevice, Err: fmt.Errorf("calibrate: %w", err)}
		}
	}

	s := &MPU9250{dev: dev, name: opts.SPIDevice, channels: opts.Channels}
	for _, ch := range opts.Channels {
		r, err := s.reader(ch)
		if err != nil {
			return nil, err
		}
		s.readers = append(s.readers, r)
	}
	s.ticker = time.NewTicker(opts.Interval)

	logger.Info("MPU9250 initialized",
		zap.String("spi", opts.SPIDevice),
		zap.String("cs", opts.CSPin),
		zap.Duration("interval", opts.Interval))
	return s, nil
}

func (s *MPU9250) reader(channel string) (func() (int16, error), error) {
	switch channel {
	case "ax":
		return s.dev.GetAccelerationX, nil
	case "ay":
		return s.dev.GetAccelerationY, nil
	case "az":
		return s.dev.GetAccelerationZ, nil
	case "gx":
		return s.dev.GetRotationX, nil
	case "gy":
		return s.dev.GetRotationY, nil
	case "gz":
		return s.dev.GetRotationZ, nil
	default:
		return nil, fmt.Errorf("mpu9250 source: channel %q not supported", channel)
	}
}

// Next waits for the next tick and reads every configured register.
func (s *MPU9250) Next(ctx context.Context) (imu.Sample, error) {
	var at time.Time
	select {
	case <-ctx.Done():
		return imu.Sample{}, ctx.Err()
	case at = <-s.ticker.C:
	}

	values := make([]float64, len(s.readers))
	for i, read := range s.readers {
		v, err := read()
		if err != nil {
			return imu.Sample{}, &imu.DeviceError{Device: s.name, Err: fmt.Errorf("read %s: %w", s.channels[i], err)}
		}
		values[i] = float64(v)
	}
	return imu.Sample{Time: s.clk.since(at), Values: values}, nil
}

func (s *MPU9250) Close() error {
	s.ticker.Stop()
	return nil
}
