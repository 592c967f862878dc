// Command gpio-monitor watches GPIO lines and reacts to their edges by
// starting systemd units, updating inventory presence, reporting health
// and publishing events to MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/sweeney/gpio-monitor/internal/action"
	"github.com/sweeney/gpio-monitor/internal/config"
	"github.com/sweeney/gpio-monitor/internal/gpio"
	"github.com/sweeney/gpio-monitor/internal/logging"
	"github.com/sweeney/gpio-monitor/internal/mqtt"
	"github.com/sweeney/gpio-monitor/internal/reactor"
	"github.com/sweeney/gpio-monitor/internal/status"
	"github.com/sweeney/gpio-monitor/internal/web"
)

const defaultConfigFile = "/usr/share/gpio-monitor/lines.json"

type options struct {
	configFile  string
	logLevel    string
	logFormat   string
	broker      string
	topicPrefix string
	httpAddr    string
	consumer    string
	heartbeat   time.Duration
	printState  bool
}

func main() {
	exitCode := 1
	defer func() {
		os.Exit(exitCode)
	}()

	var o options
	app := &cli.App{
		Name:  "gpio-monitor",
		Usage: "monitor GPIO lines and act on their edges",
		UsageText: "gpio-monitor --config <file> [--broker <url>] [--http <addr>]" +
			"\n\nEXAMPLE:" +
			"\n\tgpio-monitor -c /usr/share/gpio-monitor/lines.json --broker tcp://localhost:1883",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &o.configFile, Value: defaultConfigFile, Usage: "load line definitions from `FILE` (JSON or YAML)"},
			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Destination: &o.logLevel, Value: "info", Usage: "`LEVEL` is one of panic|fatal|error|warn|info|debug|trace"},
			&cli.StringFlag{Name: "log-format", Destination: &o.logFormat, Value: "text", Usage: "log output `FORMAT` (text|json)"},
			&cli.StringFlag{Name: "broker", Destination: &o.broker, Usage: "MQTT broker `URL` (empty disables publishing)"},
			&cli.StringFlag{Name: "topic-prefix", Destination: &o.topicPrefix, Value: mqtt.DefaultTopicPrefix, Usage: "MQTT topic `PREFIX`"},
			&cli.StringFlag{Name: "http", Destination: &o.httpAddr, Usage: "HTTP status `ADDR` (empty disables)"},
			&cli.StringFlag{Name: "consumer", Destination: &o.consumer, Value: gpio.DefaultConsumer, Usage: "consumer `LABEL` reported for requested lines"},
			&cli.DurationFlag{Name: "heartbeat", Destination: &o.heartbeat, Value: 15 * time.Minute, Usage: "system heartbeat `INTERVAL` on MQTT (0 disables)"},
			&cli.BoolFlag{Name: "print-state", Destination: &o.printState, Usage: "print the level of every configured line and exit"},
		},
		Action: func(c *cli.Context) error {
			if err := logging.Setup(o.logLevel, o.logFormat, nil); err != nil {
				return err
			}
			return run(c.Context, o)
		},
	}
	sort.Sort(cli.FlagsByName(app.Flags))

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Error("gpio-monitor failed")
		return
	}
	exitCode = 0
}

func run(ctx context.Context, o options) error {
	lines, err := config.Load(o.configFile)
	if err != nil {
		return err
	}

	backend := gpio.NewRealBackend(o.consumer)
	if o.printState {
		return printState(os.Stdout, backend, lines)
	}

	d, closeDeps := connect(ctx, o, lines)
	defer closeDeps()
	d.backend = backend

	tracker := status.NewTracker(time.Now(), status.Config{
		ConfigFile:  o.configFile,
		Broker:      o.broker,
		TopicPrefix: o.topicPrefix,
		HTTPAddr:    o.httpAddr,
	})

	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				log.WithError(err).Error("http server")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infof("http status server listening on %s", o.httpAddr)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	return start(ctx, reactor.New(), tracker, d, o.heartbeat, lines, sig)
}

// start brings up every line and serves until ctx ends or sig fires.
func start(ctx context.Context, r *reactor.Reactor, tracker *status.Tracker, d deps, heartbeat time.Duration, lines []config.Line, sig <-chan os.Signal) error {
	dm := newDaemon(r, tracker, d, heartbeat)
	n := dm.startHandlers(lines)
	if n == 0 {
		return errNoHandlers
	}
	log.Infof("monitoring %d of %d lines", n, len(lines))
	return dm.serve(ctx, sig)
}

// connect opens the services the configured lines need. A service that
// cannot be reached is logged and left nil.
func connect(ctx context.Context, o options, lines []config.Line) (deps, func()) {
	var (
		d       deps
		closers []func()
	)
	need := map[config.ActionKind]bool{}
	for _, l := range lines {
		if l.Action != config.ActionService || l.Target != "" || len(l.Targets) > 0 {
			need[l.Action] = true
		}
	}

	if need[config.ActionService] {
		if s, err := action.NewSystemdStarter(ctx); err != nil {
			log.WithError(err).Error("systemd unavailable")
		} else {
			d.starter = s
			closers = append(closers, s.Close)
		}
	}
	if need[config.ActionInventory] {
		if inv, err := action.NewDBusInventory(); err != nil {
			log.WithError(err).Error("inventory manager unavailable")
		} else {
			d.inventory = inv
		}
	}
	if need[config.ActionHealth] {
		if h, err := action.NewDBusHealth(); err != nil {
			log.WithError(err).Error("health monitor unavailable")
		} else {
			d.health = h
		}
	}

	if o.broker != "" {
		host, _ := os.Hostname()
		pub, err := mqtt.NewRealPublisher(o.broker, fmt.Sprintf("gpio-monitor-%s", host), o.topicPrefix)
		if err != nil {
			log.WithError(err).Error("mqtt publishing disabled")
		} else {
			d.publisher = pub
			d.mqttStatus = pub
			closers = append(closers, func() { pub.Close() })
		}
	}

	return d, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}
