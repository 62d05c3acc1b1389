// gofm drives an Si4703 FM receiver wired to a single board computer: it
// powers the tuner up, tunes or seeks, and prints what the station sends
// over RDS.
//
// Settings come from an optional YAML file (-config) and are overridden by
// flags. The tuner is powered down on exit unless -keep is given, in which
// case it keeps playing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/pin/pinreg"
	"periph.io/x/host/v3"

	"github.com/bartgrantham/si4703"
	"github.com/bartgrantham/si4703/internal/config"
	"github.com/bartgrantham/si4703/internal/logging"
	"github.com/bartgrantham/si4703/rds"
)

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "gofm: %s.\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	configPath := flag.String("config", "", "YAML configuration file")
	busName := flag.String("bus", "", "I²C bus to use")
	addr := flag.Uint("addr", 0, "I²C address of the tuner")
	resetPin := flag.String("reset", "", "pin wired to RST")
	stcPin := flag.String("stc", "", "pin wired to GPIO2, used as seek/tune complete line")
	freq := flag.Float64("freq", 0, "tune to this frequency in MHz")
	seek := flag.String("seek", "", "seek the next station, up or down")
	volume := flag.Int("volume", 0, "volume, 0 to 15")
	var gpios gpioFlags
	flag.Var(&gpios, "gpio", "set a GPIO of the tuner, n=mode (high-z, indicator, low, high); repeatable")
	rdsWait := flag.Duration("rds", 0, "wait this long for the station name, 0 to skip; overrides the rds section of -config")
	watch := flag.Bool("watch", false, "print RDS information until interrupted")
	id := flag.Bool("id", false, "print the device and chip identification")
	verbose := flag.Bool("v", false, "verbose mode")
	keep := flag.Bool("keep", false, "leave the tuner powered up on exit")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			return err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bus":
			cfg.I2C.Bus = *busName
		case "addr":
			cfg.I2C.Address = uint16(*addr)
		case "reset":
			cfg.Pins.Reset = *resetPin
		case "stc":
			cfg.Pins.STC = *stcPin
		case "freq":
			cfg.Tuner.Frequency = *freq
		case "volume":
			cfg.Tuner.Volume = *volume
		case "rds":
			setRDSWait(cfg, *rdsWait)
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}
	var dir si4703.Direction
	if *seek != "" {
		var err error
		if dir, err = parseDirection(*seek); err != nil {
			return err
		}
	}

	logger, err := logging.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()
	if *verbose {
		logger.SetLevel(logging.LevelDebug)
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("couldn't initialize peripherals: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2C.Bus)
	if err != nil {
		return fmt.Errorf("couldn't initialize i2c bus: %w", err)
	}
	defer bus.Close()
	if p, ok := bus.(i2c.Pins); ok {
		_, sclPin := pinreg.Position(p.SCL())
		_, sdaPin := pinreg.Position(p.SDA())
		logger.Debugf("main", "using i2c %q, %s: pin %d, %s: pin %d", bus, p.SCL(), sclPin, p.SDA(), sdaPin)
	}

	opts := cfg.Opts()
	opts.Logf = logger.Logf("si4703")
	if opts.ResetPin, err = outPin(cfg.Pins.Reset); err != nil {
		return err
	}
	if opts.ModePin, err = outPin(cfg.Pins.Mode); err != nil {
		return err
	}
	if cfg.Pins.STC != "" {
		p := gpioreg.ByName(cfg.Pins.STC)
		if p == nil {
			return fmt.Errorf("no pin named %q", cfg.Pins.STC)
		}
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return err
		}
		opts.STCPin = p
	}

	dev, err := si4703.NewI2C(bus, &opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := dev.PowerUp(ctx); err != nil {
		return err
	}
	logger.Infof("main", "%s powered up in %s", dev, time.Since(start).Round(time.Millisecond))
	devLog := logger.WithFields(logging.Fields{"bus": cfg.I2C.Bus, "addr": fmt.Sprintf("0x%02x", cfg.I2C.Address)})
	if *keep {
		logger.Warnf("main", "%s stays powered up on exit", dev)
	} else {
		defer func() {
			if err := dev.Halt(); err != nil {
				devLog.Errorf("main", "power down: %v", err)
			}
		}()
	}

	if *id {
		devID, err := dev.DeviceID()
		if err != nil {
			return err
		}
		chipID, err := dev.ChipID()
		if err != nil {
			return err
		}
		fmt.Printf("device: %s\nchip:   %s\n", devID, chipID)
	}

	if err := dev.SetVolume(cfg.Tuner.Volume); err != nil {
		return err
	}
	for _, g := range gpios {
		if err := dev.SetGPIO(g.n, g.mode); err != nil {
			return err
		}
	}
	if f := cfg.Frequency(); f != 0 {
		got, err := dev.SetFrequency(ctx, f)
		if err != nil {
			return err
		}
		logger.Info("tuner", "tuned", logging.Fields{"requested": f, "frequency": got})
		fmt.Printf("tuned to %s\n", got)
	}
	if *seek != "" {
		got, err := dev.Seek(ctx, dir)
		if err != nil {
			return err
		}
		devLog.Infof("tuner", "seek %s: %s", dir, got)
		if got == 0 {
			fmt.Printf("seek %s: no station found\n", dir)
		} else {
			fmt.Printf("found station at %s\n", got)
		}
	}

	st, err := dev.Status()
	if err != nil {
		return err
	}
	freqNow, err := dev.Frequency()
	if err != nil {
		return err
	}
	logger.Debug("tuner", "status", logging.Fields{
		"frequency": freqNow,
		"rssi":      st.RSSI,
		"stereo":    st.Stereo,
		"rds":       st.RDSSynced,
	})
	fmt.Printf("%s: %s\n", freqNow, st)

	if cfg.RDS.Enabled {
		ps, err := dev.ReadRDS(ctx, cfg.RDSTimeout())
		if err != nil {
			return err
		}
		if ps == "" {
			logger.Warn("rds", "no station name", logging.Fields{"timeout": cfg.RDSTimeout()})
			fmt.Println("no station name received")
		} else {
			fmt.Printf("station: %q\n", ps)
		}
	}

	if *watch {
		dec := rds.NewDecoder()
		err := dev.PollRDS(ctx, dec, func(d *rds.Decoder) {
			st, err := dev.Status()
			if err != nil {
				devLog.Warnf("rds", "status: %v", err)
			}
			devLog.Debugf("rds", "PI 0x%04x, %d groups", d.PI, d.Groups[0]+d.Groups[4])
			fmt.Println(formatRDS(d, st, cfg.RDS.RBDS))
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("rds", "watch stopped: %v", err)
			return err
		}
	}
	return nil
}

// outPin returns the pin named name as an output, nil when name is empty.
func outPin(name string) (si4703.PinOut, error) {
	if name == "" {
		return nil, nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no pin named %q", name)
	}
	return p, nil
}

// formatRDS renders one line of station information.
func formatRDS(d *rds.Decoder, st si4703.Status, rbds bool) string {
	stereo := "Mono  "
	if st.Stereo {
		stereo = "Stereo"
	}
	traffic := ' '
	if d.TrafficProgram {
		traffic = 'T'
	}
	call := d.CallSign
	if call == "" {
		call = "----"
	}
	return fmt.Sprintf("%.4s (%s) : %3d  %s  %c : %-8.8s : %s",
		call, d.ProgramTypeName(rbds), st.RSSI, stereo, traffic, d.ProgramService, d.RadioText)
}
