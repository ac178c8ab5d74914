// Package client subscribes to an inspector server and receives the event
// batches it publishes.
//
// Example usage:
//
//	import "github.com/h2events/go-sdk/pkg/client"
//
//	c, err := client.New(client.Config{BaseURL: "http://127.0.0.1:8642"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	// Track every received batch locally
//	tracker := events.NewTracker(events.DefaultTrackerConfig())
//	if err := c.Subscribe(ctx, tracker); err != nil {
//		log.Fatal(err)
//	}
//
//	// Or range over them
//	batches, err := c.Stream(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for batch := range batches {
//		fmt.Println(batch)
//	}
//
// GRPCClient subscribes to the inspector's gRPC endpoint instead:
//
//	gc, err := client.NewGRPC(client.GRPCConfig{Target: "127.0.0.1:8643"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer gc.Close()
//	err = gc.Subscribe(ctx, tracker)
package client
