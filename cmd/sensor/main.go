package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sanspareilsmyn/batterylens/internal/estimator"
	"github.com/sanspareilsmyn/batterylens/internal/reading"
)

var (
	broker   = flag.String("broker", "localhost:9092", "Kafka broker address")
	topic    = flag.String("topic", "battery-readings", "Kafka topic to publish readings to")
	devices  = flag.Int("devices", 3, "Number of simulated devices")
	interval = flag.Duration("interval", 5*time.Second, "Reading interval")
)

// device simulates one phone's battery: it discharges with noise, plugs in
// when nearly empty, charges back up, sits full for a while, then unplugs.
type device struct {
	id        string
	level     float64
	state     estimator.ChargeState
	fullTicks int
	lowPower  bool
}

func newDevice(id string, rng *rand.Rand) *device {
	return &device{
		id:    id,
		level: 0.5 + rng.Float64()*0.5,
		state: estimator.StateDischarging,
	}
}

// step advances the simulation by dt and returns the next reading.
func (d *device) step(rng *rand.Rand, dt time.Duration, now time.Time) reading.BatteryReading {
	seconds := dt.Seconds()

	switch d.state {
	case estimator.StateDischarging:
		// Roughly 6 hours from full to empty, plus sensor noise.
		d.level -= seconds/21600 + rng.NormFloat64()*0.0005
		if d.level <= 0.08 {
			d.state = estimator.StateCharging
		}
	case estimator.StateCharging:
		// Roughly 90 minutes from empty to full.
		d.level += seconds/5400 + rng.NormFloat64()*0.0005
		if d.level >= 1 {
			d.level = 1
			d.state = estimator.StateFull
			d.fullTicks = 20 + rng.Intn(40)
		}
	case estimator.StateFull:
		d.fullTicks--
		if d.fullTicks <= 0 {
			d.state = estimator.StateDischarging
		}
	}
	if d.level < 0 {
		d.level = 0
	} else if d.level > 1 {
		d.level = 1
	}
	d.lowPower = d.level < 0.2 && d.state == estimator.StateDischarging

	level := d.level
	// Occasional one-tick sensor glitch the estimator should reject.
	if d.state != estimator.StateFull && rng.Float64() < 0.02 {
		level += (rng.Float64() - 0.5) * 0.2
		if level < 0 {
			level = 0
		} else if level > 1 {
			level = 1
		}
	}

	thermal := reading.ThermalNominal
	if d.state == estimator.StateCharging && rng.Float64() < 0.1 {
		thermal = reading.ThermalFair
	}

	return reading.BatteryReading{
		DeviceID:  d.id,
		Timestamp: now,
		Level:     level,
		State:     d.state,
		LowPower:  d.lowPower,
		Thermal:   thermal,
	}
}

func main() {
	flag.Parse()

	writer := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(*broker, ",")...),
		Topic:    *topic,
		Balancer: &kafka.LeastBytes{},
	}
	defer func() {
		if err := writer.Close(); err != nil {
			log.Fatalf("Error closing kafka writer: %v", err)
		}
	}()
	log.Printf("Starting battery sensor simulator for topic: %s on broker: %s", *topic, *broker)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signals
		log.Println("Shutdown signal received, stopping simulator...")
		cancel()
	}()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	sims := make([]*device, 0, *devices)
	for i := 0; i < *devices; i++ {
		sims = append(sims, newDevice(deviceID(i), rng))
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			for _, d := range sims {
				r := d.step(rng, *interval, now)
				payload, err := reading.EncodeJSON(r)
				if err != nil {
					log.Printf("Error encoding reading: %v", err)
					continue
				}

				err = writer.WriteMessages(ctx, kafka.Message{
					Key:   []byte(r.DeviceID),
					Value: payload,
				})
				if err != nil {
					if ctx.Err() != nil {
						log.Println("Context cancelled, exiting message loop.")
						return
					}
					log.Printf("Error writing reading: %v", err)
					continue
				}
				log.Printf("Produced reading: %s", string(payload))
			}

		case <-ctx.Done():
			log.Println("Simulator loop stopped.")
			return
		}
	}
}

func deviceID(i int) string {
	return fmt.Sprintf("device-%02d", i)
}
