package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/stepflow/pkg/notify"
)

func (a *app) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print queue events published to Redis by other stepflow processes",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindFlags(cmd, map[string]string{
				keyRedisAddr:    "redis-addr",
				keyRedisChannel: "redis-channel",
			}); err != nil {
				return err
			}
			if a.v.GetString(keyRedisAddr) == "" {
				return fmt.Errorf("watch needs a Redis address: set --redis-addr or STEPFLOW_REDIS_ADDR")
			}
			return nil
		},
		RunE: a.watch,
	}

	f := cmd.Flags()
	f.String("redis-addr", "", "Redis server to subscribe to")
	f.String("redis-channel", "stepflow:events", "Redis pub/sub channel for events")
	f.String("queue", "", "only show events from this queue")
	f.Bool("json", false, "print raw JSON records")
	return cmd
}

func (a *app) watch(cmd *cobra.Command, args []string) error {
	logger := a.logger(cmd)
	queue, _ := cmd.Flags().GetString("queue")
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := a.redisClient()
	defer func() { _ = client.Close() }()

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	return notify.ListenWithConfig(ctx, client, notify.ListenConfig{
		Channel: a.v.GetString(keyRedisChannel),
		Logger:  logger,
	}, func(r notify.Record) {
		if queue != "" && r.Queue != queue {
			return
		}
		if asJSON {
			_ = enc.Encode(r)
			return
		}
		writeRecord(out, r)
	})
}

func writeRecord(w io.Writer, r notify.Record) {
	line := fmt.Sprintf("%s %s/%s %s", r.At.Local().Format("15:04:05.000"), r.Instance, r.Queue, r.Kind)
	if r.Step != nil {
		line += fmt.Sprintf(" #%d %s (%s)", r.Step.Number, r.Step.Name, r.Step.Status)
	}
	if d := r.Duration(); d > 0 {
		line += " " + round(d).String()
	}
	fmt.Fprintln(w, line)
	for _, entry := range r.Log {
		fmt.Fprintf(w, "    %s: %s\n", entry.Name, entry.Status)
	}
}
