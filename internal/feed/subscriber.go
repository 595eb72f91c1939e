package feed

import (
	"context"
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"parking-status-backend/config"
)

// Subscriber maintains the MQTT subscription that delivers occupancy signals.
// The connection auto-reconnects and resubscribes; missed messages during an
// outage are simply gaps in the perceived history.
type Subscriber struct {
	client   paho.Client
	pipeline *Pipeline
	cfg      config.FeedConfig
}

// NewSubscriber builds the MQTT client. Connect is deferred to Start so the
// pipeline's context governs the whole subscription lifetime.
func NewSubscriber(cfg config.FeedConfig, pipeline *Pipeline) *Subscriber {
	s := &Subscriber{pipeline: pipeline, cfg: cfg}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("feed: broker connection lost: %v", err)
		})

	s.client = paho.NewClient(opts)
	return s
}

// onConnect (re)subscribes; it runs on every successful connect, so a
// reconnect resumes delivery without redelivering missed signals.
func (s *Subscriber) onConnect(client paho.Client) {
	log.Printf("feed: connected to broker, subscribing to %q", s.cfg.TopicPattern)
	token := client.Subscribe(s.cfg.TopicPattern, s.cfg.QoS, func(_ paho.Client, msg paho.Message) {
		s.pipeline.HandleSignal(context.Background(), msg.Topic(), msg.Payload(), time.Now().UTC())
	})
	if token.Wait() && token.Error() != nil {
		log.Printf("feed: subscribe failed: %v", token.Error())
	}
}

// Start connects to the broker and blocks until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	token := s.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// Connect retry is enabled; the client keeps trying in the
		// background, so a slow broker is not fatal.
		log.Printf("feed: broker %q not reachable yet, retrying in background", s.cfg.BrokerURL)
	} else if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker %q: %w", s.cfg.BrokerURL, err)
	}

	<-ctx.Done()
	s.client.Disconnect(1000)
	log.Println("feed: subscriber shut down")
	return nil
}
