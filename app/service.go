package app

import (
	"context"
	"fmt"
	"os"

	"github.com/kilianp07/fuelhedge/config"
	"github.com/kilianp07/fuelhedge/core/events"
	coremetrics "github.com/kilianp07/fuelhedge/core/metrics"
	"github.com/kilianp07/fuelhedge/core/run"
	"github.com/kilianp07/fuelhedge/infra/logger"
	"github.com/kilianp07/fuelhedge/infra/metrics"
	"github.com/kilianp07/fuelhedge/infra/publish"
	"github.com/kilianp07/fuelhedge/internal/eventbus"
	"github.com/kilianp07/fuelhedge/pkg/export"
)

// Service wires configuration, sinks and the run engine together.
type Service struct {
	engine      *run.Engine
	bus         *eventbus.TypedBus[events.RunEvent]
	publisher   *publish.MQTTPublisher
	output      config.OutputConfig
	log         logger.Logger
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	units, market, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.NewTyped[events.RunEvent]()
	engine, err := run.New(units, market, cfg.Optimizer, cfg.Run, logger.New("engine"), sink, bus)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	svc := &Service{
		engine:      engine,
		bus:         bus,
		output:      cfg.Output,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}
	if cfg.Publisher.Enabled {
		pub, err := publish.NewMQTTPublisher(cfg.Publisher)
		if err != nil {
			return nil, fmt.Errorf("result publisher: %w", err)
		}
		svc.publisher = pub
	}
	return svc, nil
}

// Run executes one optimization run, writes the result and publishes it to
// the configured consumers.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	progress := s.bus.Subscribe()
	go func() {
		for ev := range progress {
			if ev.Err != nil {
				s.log.Errorf("run %s: stage %s: %v", ev.RunID, ev.Stage, ev.Err)
				continue
			}
			s.log.Debugf("run %s: %s", ev.RunID, ev.Stage)
		}
	}()

	res, err := s.engine.Run(ctx)
	if err != nil {
		return err
	}

	if s.output.Path == "-" {
		if err := export.WriteJSON(os.Stdout, res); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	} else {
		f, err := os.Create(s.output.Path)
		if err != nil {
			return fmt.Errorf("create result file: %w", err)
		}
		defer f.Close()
		if err := export.WriteJSON(f, res); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		s.log.Infof("result written to %s", s.output.Path)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(res); err != nil {
			s.log.Errorf("publish result: %v", err)
		}
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.publisher != nil {
		s.publisher.Close()
	}
	return nil
}
