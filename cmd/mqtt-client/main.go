package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mqttcore/client"
	"github.com/mqttcore/client/packet"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := mqtt.New(mqtt.URL("mqtt://127.0.0.1:1883"), mqtt.Reconnect(mqtt.ReconnectMode{
		Policy:         mqtt.ReconnectRetry,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Jitter:         0.2,
	}))

	if _, err := c.AddMessageListener("", func(msg *packet.Message) {
		log.Printf("on: %s", msg.TopicName)
	}); err != nil {
		log.Fatal(err)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if _, err := c.Connect(ctx); err != nil {
			return err
		}
		_, err := c.Subscribe([]packet.Subscription{
			{TopicFilter: "+"}, {TopicFilter: "a/b/c"},
		}).Wait(ctx)
		return err
	})

	group.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			if _, err := c.Publish(&packet.Message{
				TopicName: "12345",
				Content:   []byte(time.Now().Format("2006-01-02 15:04:05")),
			}, 1).Wait(ctx); err != nil {
				log.Printf("%v", err)
			}
		}
	})

	group.Go(func() error {
		defer cancel()
		sign := make(chan os.Signal, 1)
		signal.Notify(sign, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-sign:
			return fmt.Errorf("got signal: %s", sig)
		}
	})

	err := group.Wait()
	c.Close(context.Background())
	if err != nil {
		log.Fatal(err)
	}
}
