package cli

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/restoration-assistant/internal/assistant/config"
	"github.com/yungbote/restoration-assistant/internal/assistant/escalation"
	"github.com/yungbote/restoration-assistant/internal/platform/logger"
	"github.com/yungbote/restoration-assistant/internal/platform/redisx"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "escalations",
		Short: "Print escalation tickets published on the Redis channel",
		Run:   runEscalations,
	})
}

func runEscalations(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		exitErr("load config", err)
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		exitErr("init logger", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisx.Connect(ctx, redisx.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		exitErr("connect redis", err)
	}
	defer rdb.Close()

	pub, err := escalation.NewRedisPublisher(log, rdb, cfg.Escalation.Channel)
	if err != nil {
		exitErr("init subscriber", err)
	}
	out := cmd.OutOrStdout()
	err = pub.Subscribe(ctx, func(t escalation.Ticket) {
		b, _ := json.Marshal(t)
		fmt.Fprintln(out, string(b))
	})
	if err != nil {
		exitErr("subscribe", err)
	}
	log.Info("Watching escalations", "channel", cfg.Escalation.Channel)
	<-ctx.Done()
}
