package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mqttcore/client"
	"github.com/mqttcore/client/packet"
)

func main() {
	group, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 100; i++ {
		i := i
		c := mqtt.New(mqtt.URL("mqtt://127.0.0.1:1883"), mqtt.ClientID(fmt.Sprintf("bench-%d", i)))

		group.Go(func() error {
			if _, err := c.Connect(ctx); err != nil {
				return err
			}
			if _, err := c.AddMessageListener("+", func(msg *packet.Message) {
				log.Printf("topic=%s msg=%s", msg.TopicName, msg.Content)
			}); err != nil {
				return err
			}
			if _, err := c.Subscribe([]packet.Subscription{
				{TopicFilter: "+"}, {TopicFilter: "a/b/c"},
			}).Wait(ctx); err != nil {
				return err
			}

			topic := fmt.Sprintf("topic-%d", i)
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					c.Publish(&packet.Message{TopicName: topic, Content: []byte("hello world")}, 0)
				}
			}
		})
	}
	if err := group.Wait(); err != nil {
		panic(err)
	}
}
