// Package hub implements the broadcast hub: the server-side owner of the
// shared history and the registry of connected sessions.
//
// All hub state lives on the goroutine running [Hub.Run]. Sessions, whether
// backed by a websocket or an in-process link, only submit events into the
// loop and drain their own send queue, so history mutation and fan-out happen
// one event at a time without locks.
//
// A session that falls behind far enough to fill its send queue is evicted
// rather than allowed to stall the loop. Inbound events are rate limited per
// session.
//
// # HTTP surface
//
//	GET /ws?client_id=<identity>&name=<display name>   websocket upgrade
//	GET /metrics                                      prometheus metrics
//	GET /healthz                                      liveness check
package hub
