package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/go-pdf2audio/internal/broker"
	"github.com/example/go-pdf2audio/internal/config"
	"github.com/example/go-pdf2audio/internal/jobs"
	"github.com/example/go-pdf2audio/internal/pdf"
	"github.com/example/go-pdf2audio/internal/pipeline"
	"github.com/example/go-pdf2audio/internal/tts"
)

// localQueueCapacity bounds tasks waiting for an in-process worker.
const localQueueCapacity = 64

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// buildConverter wires the extractor, synthesizer and chunk pipeline.
func buildConverter(cfg config.Config, log *slog.Logger) (*pipeline.Converter, error) {
	synth, err := tts.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("tts backend: %w", err)
	}

	p := pipeline.New(synth, pipeline.Options{
		ScratchDir:   cfg.Paths.ScratchDir,
		ChunkTimeout: seconds(cfg.TTS.ChunkTimeout),
		Logger:       log,
	})
	return pipeline.NewConverter(pdf.NewExtractor(), p, pipeline.ConverterOptions{
		MaxPages:      cfg.PDF.MaxPages,
		MaxChunkChars: cfg.TTS.MaxChunkChars,
		Logger:        log,
	}), nil
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (jobs.Store, error) {
	driver, err := config.NormalizeStoreDriver(cfg.Store.Driver)
	if err != nil {
		return nil, err
	}
	if driver != config.StoreSQLite {
		return jobs.NewMemoryStore(), nil
	}
	store, err := jobs.OpenSQLite(ctx, cfg.Store.Path, log)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func brokerOptions(cfg config.Config) broker.Options {
	return broker.Options{
		Stream:     cfg.NATS.Stream,
		Subject:    cfg.NATS.Subject,
		QueueGroup: cfg.NATS.QueueGroup,
		UploadDir:  cfg.Paths.UploadDir,
	}
}

// connectBroker dials NATS, first starting an embedded server when
// configured. The returned func closes both.
func connectBroker(cfg config.Config, name string, log *slog.Logger) (*broker.Client, func(), error) {
	url := cfg.NATS.URL
	var embedded *broker.EmbeddedServer
	if cfg.NATS.Embedded {
		var err error
		embedded, err = broker.StartEmbedded(cfg.NATS.Port, cfg.NATS.StoreDir, log)
		if err != nil {
			return nil, nil, err
		}
		url = embedded.ClientURL()
	}

	client, err := broker.Connect(url, name, log)
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, nil, err
	}

	return client, func() {
		client.Close()
		if embedded != nil {
			embedded.Shutdown()
		}
	}, nil
}

// jobRuntime is the async side of a process: store, transport, in-process
// workers and the orchestrator handlers submit through.
type jobRuntime struct {
	orchestrator *jobs.Orchestrator
	store        jobs.Store
	closers      []func()
}

// Close releases resources in reverse order of acquisition.
func (r *jobRuntime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// startJobs builds the job runtime for cfg.Queue.Transport. With NATS,
// cfg.Queue.Workers consumers also run in this process; zero makes the
// process a producer only.
func startJobs(ctx context.Context, cfg config.Config, conv jobs.Converter, log *slog.Logger) (*jobRuntime, error) {
	transport, err := config.NormalizeTransport(cfg.Queue.Transport)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	rt := &jobRuntime{store: store}
	rt.closers = append(rt.closers, func() {
		if err := store.Close(); err != nil {
			log.Warn("close job store", slog.String("error", err.Error()))
		}
	})

	worker := jobs.NewWorker(store, conv, seconds(cfg.Queue.JobTimeout), log)

	var queue jobs.Queue
	switch transport {
	case config.TransportNATS:
		client, closeBroker, err := connectBroker(cfg, "pdf2audio-api", log)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, closeBroker)

		nq, err := broker.NewQueue(client, brokerOptions(cfg))
		if err != nil {
			rt.Close()
			return nil, err
		}
		queue = nq

		if cfg.Queue.Workers > 0 {
			consumer, err := broker.Consume(ctx, client, brokerOptions(cfg), cfg.Queue.Workers, worker, log)
			if err != nil {
				rt.Close()
				return nil, err
			}
			rt.closers = append(rt.closers, consumer.Close)
		}
	default:
		lq := jobs.NewLocalQueue(ctx, worker, cfg.Queue.Workers, localQueueCapacity, log)
		rt.closers = append(rt.closers, lq.Close)
		queue = lq
	}

	rt.orchestrator = jobs.NewOrchestrator(store, queue, log)

	retention := time.Duration(cfg.Store.RetentionHours) * time.Hour
	go jobs.RunPruner(ctx, store, retention, time.Hour, log)

	return rt, nil
}

// requireSharedStore rejects configurations where a separate worker process
// could not see the jobs the API created.
func requireSharedStore(cfg config.Config) error {
	driver, err := config.NormalizeStoreDriver(cfg.Store.Driver)
	if err != nil {
		return err
	}
	if driver != config.StoreSQLite {
		return errors.New("a separate worker needs a shared job store: set store.driver=sqlite")
	}
	return nil
}
