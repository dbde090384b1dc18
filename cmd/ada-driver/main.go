package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openastro/ada"
	"github.com/openastro/ada/drivers/dsdfp"
	"github.com/openastro/ada/drivers/ieqpro"
	"github.com/openastro/ada/flatpanel"
	"github.com/openastro/ada/mount"
	"github.com/openastro/ada/rules"
	"github.com/openastro/ada/transport"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
	"github.com/shimmeringbee/persistence/impl/memory"
	cli "github.com/urfave/cli/v2"
)

func run(c *cli.Context) error {
	logger := logwrap.New(golog.Wrap(log.New(os.Stderr, "", log.LstdFlags)))

	t, err := openTransport(c)
	if err != nil {
		return err
	}
	defer t.Close()

	dev := ada.New(c.String("name"), t, memory.New())
	dev.WithLogWrapLogger(logger)
	dev.SetPollInterval(c.Duration("interval"))

	if err := attachDriver(c, dev, &logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = dev.Connect(connectCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		dev.Disconnect(shutdownCtx)
	}()

	logger.LogInfo(ctx, "Device ready.", logwrap.Datum("capabilities", dev.Capabilities().String()))

	for {
		event, err := dev.ReadEvent(ctx)
		if err != nil {
			logger.LogInfo(ctx, "Shutting down.")
			return nil
		}

		switch e := event.(type) {
		case ada.PropertyDefined:
			logger.LogInfo(ctx, "Property defined.", logwrap.Datum("property", e.Property.Name))
		case ada.PropertyUpdated:
			logger.LogInfo(ctx, "Property updated.", logwrap.Datum("property", e.Property.Name), logwrap.Datum("state", e.Property.State.String()))
		case ada.PropertyWithdrawn:
			logger.LogInfo(ctx, "Property withdrawn.", logwrap.Datum("property", e.Name))
		case ada.DeviceDisconnected:
			logger.LogInfo(ctx, "Device disconnected.")
			return nil
		}
	}
}

func openTransport(c *cli.Context) (transport.Transport, error) {
	if addr := c.String("tcp"); addr != "" {
		return transport.DialTCP(addr, 10*time.Second)
	}

	port := c.String("port")
	if port == "" {
		return nil, fmt.Errorf("one of --port or --tcp is required")
	}

	return transport.OpenSerial(port, c.Int("baud"))
}

func attachDriver(c *cli.Context, dev *ada.Device, logger *logwrap.Logger) error {
	switch c.String("driver") {
	case "ieqpro":
		engine, err := rules.Compile(rules.DefaultRules())
		if err != nil {
			return fmt.Errorf("rules: %w", err)
		}

		dev.AttachModule(mount.New(ieqpro.New(dev.Transport(), logger), engine))

	case "dsdfp":
		dev.AttachModule(flatpanel.New(dsdfp.New(dev.Transport(), logger)))

	default:
		return fmt.Errorf("unknown driver %q", c.String("driver"))
	}

	return nil
}

func main() {
	app := cli.App{
		Name:  "ada-driver",
		Usage: "Serial instrument driver daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "driver",
				Usage:   "Protocol driver to load (ieqpro, dsdfp)",
				EnvVars: []string{"ADA_DRIVER"},
			},
			&cli.StringFlag{
				Name:    "name",
				Usage:   "Device name used in logs and events",
				Value:   "device",
				EnvVars: []string{"ADA_NAME"},
			},
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Serial port device",
				EnvVars: []string{"ADA_PORT"},
			},
			&cli.IntFlag{
				Name:    "baud",
				Usage:   "Serial baud rate",
				Value:   9600,
				EnvVars: []string{"ADA_BAUD"},
			},
			&cli.StringFlag{
				Name:    "tcp",
				Usage:   "Connect over TCP to host:port instead of a serial port",
				EnvVars: []string{"ADA_TCP"},
			},
			&cli.DurationFlag{
				Name:    "interval",
				Usage:   "Status poll interval",
				Value:   ada.DefaultPollInterval,
				EnvVars: []string{"ADA_INTERVAL"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
