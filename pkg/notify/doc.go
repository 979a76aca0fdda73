// Package notify relays task queue events over Redis pub/sub so hosts in
// other processes can observe runs.
//
// A Publisher attaches to one or more queues and publishes every event as a
// JSON Record on a channel. Publishing happens on a background goroutine, so
// queue observers never wait on the network; when the buffer is full new
// records are dropped and counted.
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	pub, err := notify.NewPublisher(notify.Config{Redis: rdb, Channel: "stepflow:events"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer pub.Close()
//	pub.Attach("deploy", q)
//
// Listen consumes the channel from another process:
//
//	err := notify.Listen(ctx, rdb, "stepflow:events", func(r notify.Record) {
//		fmt.Println(r.Queue, r.Kind, r.Step)
//	})
//
// Only notifications cross the wire; queues are never scheduled remotely.
package notify
