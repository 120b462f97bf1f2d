package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Hy8012/tirslk-maze-1-00-00/internal/logger"
)

//start modes
const (
	startButton = "button"
	startRemote = "remote"
	startAuto   = "auto"
)

func loadEnv() error {
	path := os.Getenv("LINEBOT_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func main() {
	if err := loadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	app := cli.NewApp()
	app.Name = "bottomside"
	app.Usage = "run the line following controller on the robot"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "serial",
			Value:  "/dev/ttyACM0",
			Usage:  "serial port for arduino",
			EnvVar: "LINEBOT_SERIAL",
		},
		cli.IntFlag{
			Name:   "baud",
			Value:  115200,
			Usage:  "serial baud rate",
			EnvVar: "LINEBOT_BAUD",
		},
		cli.BoolFlag{
			Name:   "sim",
			Usage:  "drive a simulated robot instead of the arduino",
			EnvVar: "LINEBOT_SIM",
		},
		cli.StringFlag{
			Name:   "http",
			Value:  ":8080",
			Usage:  "http server listening address",
			EnvVar: "LINEBOT_HTTP",
		},
		cli.DurationFlag{
			Name:   "tick",
			Value:  defaultTick,
			Usage:  "sampler period",
			EnvVar: "LINEBOT_TICK",
		},
		cli.IntFlag{
			Name:   "phases",
			Value:  DefaultPhases,
			Usage:  "ticks per sensor sampling period",
			EnvVar: "LINEBOT_PHASES",
		},
		cli.StringFlag{
			Name:   "table",
			Usage:  "YAML state table (built-in table when empty)",
			EnvVar: "LINEBOT_TABLE",
		},
		cli.StringFlag{
			Name:   "start",
			Value:  startButton,
			Usage:  "start control: button, remote or auto",
			EnvVar: "LINEBOT_START",
		},
		cli.IntFlag{
			Name:   "debounce",
			Value:  4,
			Usage:  "stable button readings needed for a press or release",
			EnvVar: "LINEBOT_DEBOUNCE",
		},
		cli.IntFlag{
			Name:   "pwm-period",
			Value:  15000,
			Usage:  "drive level that maps to full duty cycle",
			EnvVar: "LINEBOT_PWM_PERIOD",
		},
		cli.StringFlag{
			Name:   "log-level",
			Value:  "info",
			Usage:  "debug, info, warn or error",
			EnvVar: "LINEBOT_LOG_LEVEL",
		},
		cli.StringFlag{
			Name:   "log-format",
			Value:  string(logger.FormatConsole),
			Usage:  "console or json",
			EnvVar: "LINEBOT_LOG_FORMAT",
		},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := logger.New(c.GlobalString("log-level"), logger.Format(c.GlobalString("log-format")))
	defer log.Sync()
	runID := uuid.NewString()
	log = log.With(zap.String("run", runID))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	table := ReferenceTable()
	if path := c.GlobalString("table"); path != "" {
		var err error
		if table, err = LoadTable(path); err != nil {
			return err
		}
		log.Info("state table loaded", zap.String("path", path), zap.Int("states", table.Len()))
	}

	g, ctx := errgroup.WithContext(ctx)

	var (
		sensor Sensor
		motors Motors
		leds   Indicators
		button func() bool
		link   = c.GlobalString("serial")
	)
	if c.GlobalBool("sim") {
		sim := NewSimRobot(DefaultSimConfig(), log.Named(logger.ComponentSim))
		sensor, motors, leds = sim, sim, sim
		link = "sim"
	} else {
		ard, err := DialArduino(ctx, link, c.GlobalInt("baud"), log.Named(logger.ComponentArduino))
		if err != nil {
			return err
		}
		defer ard.Close()
		ard.PWMPeriod = uint16(c.GlobalInt("pwm-period"))
		sensor, motors, leds = ard, ard, ard
		button = ard.ButtonPressed
		g.Go(func() error { //fail the run when the link dies
			select {
			case <-ard.Done():
				return ard.Err()
			case <-ctx.Done():
				return nil
			}
		})
	}

	var (
		start  StartControl
		remote *RemoteButton
	)
	switch mode := c.GlobalString("start"); mode {
	case startButton:
		if button == nil {
			log.Info("no start button on the simulator, starting now")
			start = AutoStart{}
			break
		}
		start = &DebouncedButton{Read: button, Stable: c.GlobalInt("debounce")}
	case startRemote:
		remote = NewRemoteButton()
		start = remote
	case startAuto:
		start = AutoStart{}
	default:
		return fmt.Errorf("unknown start mode %q", mode)
	}

	status := &Status{RunID: runID}
	robot := NewRobot(RobotConfig{
		Table:      table,
		Sensor:     sensor,
		Motors:     motors,
		Indicators: leds,
		Start:      start,
		Status:     status,
		Tick:       c.GlobalDuration("tick"),
		Phases:     c.GlobalInt("phases"),
		Log:        log,
	})

	srv := NewServer(status, remote, Info{
		RunID:  runID,
		Link:   link,
		Tick:   robot.Tick.String(),
		Start:  c.GlobalString("start"),
		States: table.Names(),
	}, log.Named(logger.ComponentServer))
	g.Go(func() error { return srv.ListenAndServe(ctx, c.GlobalString("http")) })
	g.Go(func() error { return robot.Run(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("shut down", zap.String("state", status.Snapshot().State), zap.Error(err))
	return err
}
