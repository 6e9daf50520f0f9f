package source

import (
	"fmt"

	serial "github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_scalogram/internal/imu"
)

// SerialOptions describes the serial device and its line layout.
type SerialOptions struct {
	PortName string
	BaudRate uint
	Fields   []string // field order on each line, e.g. gx,gy,gz,ax,ay,az
	Channels []string // session channel order
}

// OpenSerial opens the port 8N1 and streams its lines.
func OpenSerial(opts SerialOptions, logger *zap.Logger) (*Lines, error) {
	// Validate the field mapping before touching the device.
	if _, err := imu.FieldOrder(opts.Fields, opts.Channels); err != nil {
		return nil, fmt.Errorf("serial source: %w", err)
	}

	serialOpts := serial.OpenOptions{
		PortName:              opts.PortName,
		BaudRate:              opts.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, &imu.DeviceError{Device: opts.PortName, Err: err}
	}
	logger.Info("serial port opened",
		zap.String("port", serialOpts.PortName),
		zap.Uint("baud", serialOpts.BaudRate),
		zap.Strings("fields", opts.Fields))

	return NewLines(opts.PortName, port, opts.Fields, opts.Channels)
}
