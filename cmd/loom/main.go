package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tarungka/loom/capture"
	"github.com/tarungka/loom/dataflow"
	"github.com/tarungka/loom/event"
	"github.com/tarungka/loom/frontier"
	"github.com/tarungka/loom/internal/logger"
	"github.com/tarungka/loom/pact"
)

var (
	buildString = "unknown"
	ko          = koanf.New(".")
)

const epochSize = 10000

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	initFlags(ko)

	if ko.Bool("version") {
		fmt.Println(buildString)
		os.Exit(0)
	}
	if ko.Bool("debug") {
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
		logger.SetDevelopment(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	topic := ko.String("topic")
	if topic == "" {
		topic = "loom-" + uuid.NewString()[:8]
		log.Info().Str("topic", topic).Msg("no topic given, generated one")
	}

	var err error
	switch mode := ko.String("mode"); mode {
	case "capture":
		err = runCapture(ctx, topic)
	case "replay":
		err = runReplay(ctx, topic)
	default:
		log.Fatal().Str("mode", mode).Msg("unknown mode, want capture or replay")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("computation failed")
	}
}

// eventLog abstracts over the two storage choices of the CLI: kafka when
// brokers are configured, a local bbolt file otherwise.
type eventLog struct {
	brokers []string
	bolt    *capture.BoltLog
}

func openLog() (*eventLog, error) {
	brokers := ko.Strings("brokers")
	if len(brokers) > 0 {
		return &eventLog{brokers: brokers}, nil
	}
	blog, err := capture.OpenBoltLog(ko.String("log-file"))
	if err != nil {
		return nil, err
	}
	return &eventLog{bolt: blog}, nil
}

func (l *eventLog) publisher(name string) (capture.Publisher, error) {
	if l.bolt != nil {
		return l.bolt.Publisher(name)
	}
	return capture.NewKafkaPublisher(l.brokers, name)
}

func (l *eventLog) subscriber(name string) (capture.Subscriber, error) {
	if l.bolt != nil {
		return l.bolt.Subscriber(name), nil
	}
	return capture.NewKafkaSubscriber(l.brokers, name)
}

func (l *eventLog) close() {
	if l.bolt != nil {
		if err := l.bolt.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close event log")
		}
	}
}

var codec = event.NewCodec[frontier.Tick, uint64](event.TickTime{}, event.Uint64Data{})

// runCapture generates 0..count, exchanges records by value so every
// worker owns a deterministic share, and captures each worker's stream to
// its own partition.
func runCapture(ctx context.Context, topic string) error {
	workers := ko.Int("workers")
	count := uint64(ko.Int64("count"))

	elog, err := openLog()
	if err != nil {
		return err
	}
	defer elog.close()

	err = dataflow.Execute(ctx, workers, func(w *dataflow.Worker) error {
		input, stream := dataflow.NewInput[frontier.Tick, uint64](w)

		routed := dataflow.Unary(stream, pact.NewExchange[frontier.Tick, uint64](func(d uint64) uint64 { return d }), "route",
			func(in *dataflow.InputHandle[frontier.Tick, uint64], out *dataflow.OutputHandle[frontier.Tick, uint64]) {
				for {
					t, batch, ok := in.Next()
					if !ok {
						break
					}
					out.Session(t).GiveSlice(batch)
				}
			})

		pub, err := elog.publisher(capture.PartitionName(topic, w.Index()))
		if err != nil {
			return err
		}
		capture.Capture(ctx, routed, codec, pub)

		peers := uint64(w.Peers())
		sent := 0
		for i := uint64(w.Index()); i < count; i += peers {
			input.Send(input.Epoch(), i)
			sent++
			if sent%epochSize == 0 {
				input.AdvanceTo(input.Epoch() + 1)
				w.Step()
			}
		}
		input.Close()
		log.Info().Int("worker", w.Index()).Int("records", sent).Str("topic", topic).Msg("capture input complete")
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Str("topic", topic).Int("partitions", workers).Uint64("count", count).Msg("capture complete")
	return nil
}

// runReplay consumes the partitions this worker owns and counts the
// replayed records; the total across workers must equal the captured
// count no matter how worker counts differ.
func runReplay(ctx context.Context, topic string) error {
	workers := ko.Int("workers")
	sourcePeers := ko.Int("source-peers")
	if sourcePeers <= 0 {
		return fmt.Errorf("replay requires --source-peers (the capturing worker count)")
	}

	elog, err := openLog()
	if err != nil {
		return err
	}
	defer elog.close()

	var total atomic.Uint64
	err = dataflow.Execute(ctx, workers, func(w *dataflow.Worker) error {
		var consumers []*capture.Consumer[frontier.Tick, uint64]
		for _, i := range capture.PartitionsFor(sourcePeers, w.Index(), w.Peers()) {
			name := capture.PartitionName(topic, i)
			sub, err := elog.subscriber(name)
			if err != nil {
				return err
			}
			consumers = append(consumers, capture.NewConsumer(name, codec, sub))
		}

		stream := capture.Replay(ctx, w, "replay", consumers)

		var seen uint64
		dataflow.Sink(stream, pact.Pipeline[frontier.Tick, uint64]{}, "count",
			func(t frontier.Tick, batch []uint64) error {
				seen += uint64(len(batch))
				total.Add(uint64(len(batch)))
				return nil
			},
			func(deltas []frontier.Delta[frontier.Tick]) error { return nil },
			func() error {
				log.Info().Int("worker", w.Index()).Uint64("records", seen).Msg("replay worker complete")
				return nil
			})
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Uint64("total", total.Load()).Str("topic", topic).Msg("replay complete")
	return nil
}
