package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/arzzra/incallui/pkg/app"
	"github.com/arzzra/incallui/pkg/config"
	"github.com/emiago/sipgo/sip"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	var (
		dial     string
		sipDebug bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the SIP-backed in-call core",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())
			slog.SetDefault(logger)
			if sipDebug {
				sip.SIPDebug = true
			}

			a, err := app.New(cfg, app.Options{Logger: logger})
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Error("Ошибка остановки", slog.String("error", err.Error()))
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if dial != "" {
				go dialOnStart(ctx, a, dial, logger)
			}
			return a.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&dial, "dial", "", "SIP URI to call once started")
	cmd.Flags().BoolVar(&sipDebug, "sip-debug", false, "log every SIP message")
	cmd.Flags().String("listen", config.Default().SIP.ListenAddr, "SIP listen address")
	cmd.Flags().Bool("auto-answer", false, "answer incoming calls automatically")
	cmd.Flags().Bool("metrics", false, "serve Prometheus metrics")
	_ = v.BindPFlag("sip.listen_addr", cmd.Flags().Lookup("listen"))
	_ = v.BindPFlag("features.auto_answer", cmd.Flags().Lookup("auto-answer"))
	_ = v.BindPFlag("metrics.enabled", cmd.Flags().Lookup("metrics"))
	return cmd
}

func dialOnStart(ctx context.Context, a *app.App, target string, logger *slog.Logger) {
	id, err := a.Dial(ctx, target)
	if err != nil {
		logger.Error("Исходящий вызов не начат",
			slog.String("target", target),
			slog.String("error", err.Error()))
		return
	}
	logger.Info("Исходящий вызов", slog.String("call_id", id), slog.String("target", target))
}
