// Package event defines the vocabulary exchanged between clients and the hub.
//
// On the wire every event is a JSON envelope naming the event and carrying its
// payload:
//
//	{"event": "status-update", "data": {"id": "…", "status": "delivered"}}
//
// In memory each event is a distinct Go type implementing [Event]. [Unmarshal]
// and [Decode] map an envelope to its fixed payload schema and validate it, so
// malformed or unknown events are rejected at the channel boundary and never
// reach the sync engine or the hub.
//
//	ev, err := event.Unmarshal(frame)
//	switch ev := ev.(type) {
//	case event.Message:
//		...
//	case event.StatusUpdate:
//		...
//	}
package event
