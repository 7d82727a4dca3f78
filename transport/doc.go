// Package transport provides the client side of the event channel between a
// sync engine and the broadcast hub.
//
// # Architecture
//
// A link carries [event.Event] values in both directions and signals when the
// channel comes up or goes down. Inbound traffic is delivered to a [Handler]:
//
//	type Handler interface {
//	    HandleConnect(ctx context.Context)
//	    HandleDisconnect(ctx context.Context)
//	    HandleEvent(ctx context.Context, ev event.Event)
//	}
//
// HandleConnect runs before the first inbound event of each connection, and
// all handler calls for a link happen on one goroutine.
//
// Outbound traffic goes through Emit, which never blocks. It queues the event
// on the current connection and returns false when there is no connection or
// the queue is full. Durability of dropped events is the caller's concern.
//
// # Implementations
//
// WebSocket client, reconnecting with exponential backoff:
//
//	c := transport.NewClient(transport.ClientConfig{
//	    URL:      "ws://localhost:3000/ws",
//	    Identity: clientID,
//	})
//	go c.Run(ctx, engine)
//
// In-process loopback attached directly to a hub, used by tests and by
// embedded deployments:
//
//	link := transport.NewLoopback(h, clientID, "Alice")
//	err := link.Connect(ctx, engine)
//
// Both links pass every event through the JSON codec so the same boundary
// validation applies.
package transport
