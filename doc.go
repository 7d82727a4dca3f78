// Package relaysync implements a realtime messaging relay with offline
// continuity.
//
// Clients compose messages into a durable local outbox whether or not a hub
// is reachable. A message stays pending until the hub confirms it; when a
// connection comes up, every pending message is replayed. The hub keeps one shared history, fans messages
// out to connected sessions, and relays delivery and read acknowledgements so
// each message moves monotonically through sent, delivered and seen.
//
// This package assembles the subsystems into two entry points. The pieces
// themselves live in sub-packages: outbox (storage), syncer (client protocol
// engine), hub (server), transport (websocket and in-process links), presence
// (typing indicators), status (status tracker), event (wire vocabulary) and
// config.
//
// # Running a Hub
//
//	cfg, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := relaysync.NewServer(cfg.Server)
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := srv.ListenAndServe(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// The server exposes /ws for clients, /metrics for Prometheus and /healthz.
//
// # Running a Client
//
//	client, err := relaysync.NewClient(cfg, syncer.ListenerFuncs{
//	    OnMessageAdded: func(rec messaging.Record) {
//	        fmt.Printf("%s: %s\n", rec.DisplayName, rec.Text)
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	go client.Run(ctx)
//
//	// Works offline; the message is sent on the next connect.
//	rec, err := client.Engine().Compose(ctx, "hello")
//
// # Status Lifecycle
//
// A message starts as sent when composed. It becomes delivered once the hub
// accepts it or a recipient acknowledges it, and seen when a recipient
// reports it on screen through [syncer.Engine.ExposureReported]. Status never
// moves backwards: a delivered acknowledgement arriving after seen is ignored.
//
// # Deletion
//
// Deleting with scope "me" removes a message from the requesting client only.
// Scope "everyone" is reserved to the author and also removes it from the hub
// history, so later sessions never receive it. Deleted IDs are tombstoned locally so a replayed snapshot
// cannot bring them back.
//
// # Logging
//
// All packages log through logrus with a "function" field. Binaries set the
// level from the log_level config key or RELAY_LOG_LEVEL.
package relaysync
