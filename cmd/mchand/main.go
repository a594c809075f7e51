// Command mchand runs one of a few small demo topologies over pkg/mchan, so
// the channel engine's behaviour - blocking/non-blocking send and receive,
// close-drains-then-closes semantics, and select - can be observed end to
// end rather than only through unit tests.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/matrix-org/mchan/pkg/config"
	"github.com/matrix-org/mchan/pkg/dispatch"
	"github.com/matrix-org/mchan/pkg/mchan"
	"github.com/matrix-org/mchan/pkg/profiling"
	"github.com/matrix-org/mchan/pkg/telemetry"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

func main() {
	var (
		configFilePath = flag.String("config", "config.yaml", "configuration file path")
		cpuProfile     = flag.String("cpuProfile", "", "write CPU profile to `file`")
		memProfile     = flag.String("memProfile", "", "write memory profile to `file`")
	)
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})

	stopProfiling := profiling.Start(*cpuProfile, *memProfile)

	ctx, cancel := context.WithCancel(context.Background())

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	cfg, err := config.LoadConfig(*configFilePath)
	if err != nil {
		logrus.WithError(err).Fatal("could not load config")
		return
	}

	setLogLevel(cfg.LogLevel)

	if cfg.Telemetry.JaegerURL != "" || cfg.Telemetry.OTLP.Host != "" {
		tp, err := telemetry.SetupTelemetry(ctx, cfg.Telemetry)
		if err != nil {
			logrus.WithError(err).Fatal("could not set up telemetry")
			return
		}

		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logrus.WithError(err).Warn("failed to shut down telemetry")
			}
		}()
	}

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Fatal("topology run failed")
	}

	stopProfiling()
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	case "fatal":
		logrus.SetLevel(logrus.FatalLevel)
	case "panic":
		logrus.SetLevel(logrus.PanicLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	switch cfg.Topology {
	case config.TopologyProducerConsumer:
		return runProducerConsumer(cfg)
	case config.TopologyFanIn:
		return runFanIn(cfg)
	case config.TopologySelectDispatch:
		return runSelectDispatch(ctx, cfg)
	default:
		return fmt.Errorf("unknown topology %q", cfg.Topology)
	}
}

// runProducerConsumer mirrors spec scenario 1: a single producer sends
// MessagesPerProducer integers, a single consumer receives them all, the
// producer closes, and the consumer observes the drain-then-close.
func runProducerConsumer(cfg *config.Config) error {
	ch, err := mchan.Create[int](cfg.ChannelCapacity)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		for i := 0; i < cfg.MessagesPerProducer; i++ {
			ch.Send(i, true)
		}

		ch.Close()
	}()

	received := 0
	for {
		_, status, _ := ch.Receive(true)
		if status == mchan.StatusClosed {
			break
		}
		received++
	}

	wg.Wait()
	logrus.WithField("received", received).Info("producer-consumer topology finished")

	return nil
}

// runFanIn mirrors spec scenario 2: Producers goroutines each send
// MessagesPerProducer values onto one shared channel; one consumer drains
// it until close.
func runFanIn(cfg *config.Config) error {
	producers := make([][]string, cfg.Producers)
	for p := range producers {
		values := make([]string, cfg.MessagesPerProducer)
		for i := range values {
			values[i] = fmt.Sprintf("producer-%d-msg-%d", p, i)
		}
		producers[p] = values
	}

	ch, closeWhenDone, err := dispatch.FanIn(cfg.ChannelCapacity, producers)
	if err != nil {
		return err
	}

	go closeWhenDone()

	received := 0
	for {
		_, status, _ := ch.Receive(true)
		if status == mchan.StatusClosed {
			break
		}
		received++
	}

	logrus.WithField("received", received).Info("fan-in topology finished")

	return nil
}

// runSelectDispatch routes messages for a handful of keys through a
// dispatch.Router and reads them back out with a Select over every key's
// channel, so that whichever producer is ready first wins each round -
// exercising the select coordinator rather than a single channel.
func runSelectDispatch(ctx context.Context, cfg *config.Config) error {
	router := dispatch.NewRouter[string, string](cfg.ChannelCapacity)
	keys := []string{"alpha", "beta", "gamma"}

	var wg sync.WaitGroup
	for _, key := range keys {
		key := key

		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := 0; i < cfg.MessagesPerProducer; i++ {
				if err := router.Route(ctx, key, fmt.Sprintf("%s-%d", key, i)); err != nil {
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		router.CloseAll()
	}()

	descriptors := make([]mchan.Descriptor[string], len(keys))
	for i, key := range keys {
		ch, err := router.Channel(key)
		if err != nil {
			return err
		}
		descriptors[i] = mchan.Descriptor[string]{Channel: ch, Direction: mchan.DirectionReceive}
	}

	coordinator := mchan.NewCoordinator[string]()

	// remaining mirrors descriptors but drops any channel once it reports
	// closed, so a drained-and-closed channel can't keep winning every
	// polling pass and starve the others.
	remaining := append([]mchan.Descriptor[string]{}, descriptors...)
	received := 0

	for len(remaining) > 0 {
		selectCtx := ctx
		cancel := func() {}
		if cfg.SelectTimeout > 0 {
			selectCtx, cancel = context.WithTimeout(ctx, cfg.SelectTimeout)
		}

		idx, status, _, err := coordinator.Select(selectCtx, remaining)
		cancel()

		if err != nil {
			break
		}

		if status == mchan.StatusClosed {
			remaining = slices.Delete(remaining, idx, idx+1)
			continue
		}

		received++
	}

	logrus.WithField("received", received).Info("select-dispatch topology finished")

	return nil
}
