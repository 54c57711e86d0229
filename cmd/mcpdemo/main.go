// Command mcpdemo pairs a synthetic provider with the reference
// subscriber adapter and exposes the admin HTTP surface: a simulated
// audio thread draining the subscriber's ring buffer, a simulated
// provider thread publishing parameter updates, and a monitoring loop
// watching the result, all expressed as goroutines and a time.Ticker
// instead of raw threads.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/rackmcp/mcpbroker/broker"
	"github.com/rackmcp/mcpbroker/internal/adapter"
	"github.com/rackmcp/mcpbroker/internal/codec"
	"github.com/rackmcp/mcpbroker/internal/config"
	"github.com/rackmcp/mcpbroker/internal/httpapi"
)

var envFile = flag.String("config", ".env", "path to .env configuration file")

// referenceProvider is the demo's provider module: it declares the
// topics it publishes on and drives them from a ticker.
type referenceProvider struct{}

func (referenceProvider) ProvidedTopics() []string {
	return []string{
		"reference/parameter1",
		"reference/parameter2",
		"reference/preset",
		"reference/parameters",
	}
}

func main() {
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("mcpdemo: no .env file loaded: %v", err)
	}

	cfg := config.New()
	cfg.ParseFlags()

	log.Printf("mcpdemo: starting admin surface on %s:%s", cfg.Host, cfg.Port)

	b := broker.New(cfg, nil)
	defer b.Shutdown()

	provider := &referenceProvider{}
	broker.RegisterProvider[referenceProvider](b, "reference/parameter1", provider)
	broker.RegisterProvider[referenceProvider](b, "reference/parameter2", provider)
	broker.RegisterProvider[referenceProvider](b, "reference/preset", provider)
	broker.RegisterProvider[referenceProvider](b, "reference/parameters", provider)

	sub := adapter.NewReferenceSubscriber(b, cfg.AdapterRingCapacity)
	sub.OnAdd()
	defer sub.OnRemove()

	router := chi.NewRouter()
	httpapi.NewHandler(b, nil).RegisterRoutes(router)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("mcpdemo: admin HTTP server error: %v", err)
		}
	}()

	stop := make(chan struct{})
	go simulateAudioThread(sub, stop)
	go simulateProviderThread(b, stop)
	go monitorSubscriber(sub, stop)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("mcpdemo: shutting down")
	close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("mcpdemo: admin HTTP shutdown error: %v", err)
	}
}

// simulateAudioThread plays the role of a real-time audio callback:
// a fixed-period tick draining the subscriber's ring buffer.
func simulateAudioThread(sub *adapter.ReferenceSubscriber, stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sub.Process()
		case <-stop:
			return
		}
	}
}

// simulateProviderThread publishes synthetic parameter updates on a
// ticker, standing in for a real audio module's control-rate output.
func simulateProviderThread(b *broker.Broker, stop <-chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	var tick int
	presets := []string{"init", "bright-pad", "sub-bass", "arp-pluck"}

	for {
		select {
		case <-ticker.C:
			tick++
			publish(b, "reference/parameter1", math.Sin(float64(tick)*0.1))
			publish(b, "reference/parameter2", math.Cos(float64(tick)*0.05))
			if tick%20 == 0 {
				publish(b, "reference/preset", presets[(tick/20)%len(presets)])
			}
			if tick%10 == 0 {
				publish(b, "reference/parameters", []float64{
					math.Sin(float64(tick) * 0.1),
					math.Cos(float64(tick) * 0.1),
					math.Sin(float64(tick) * 0.2),
				})
			}
		case <-stop:
			return
		}
	}
}

func publish(b *broker.Broker, topic string, v any) {
	if err := b.PublishValue(topic, 0, codec.FormatMsgpack, v); err != nil {
		log.Printf("mcpdemo: publish %q failed: %v", topic, err)
	}
}

// monitorSubscriber polls the adapter's current preset and logs
// changes, standing in for a UI thread watching module state.
func monitorSubscriber(sub *adapter.ReferenceSubscriber, stop <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastPreset string
	for {
		select {
		case <-ticker.C:
			preset := sub.Preset()
			if preset != lastPreset {
				log.Printf("mcpdemo: preset changed to %q", preset)
				lastPreset = preset
			}
		case <-stop:
			return
		}
	}
}
