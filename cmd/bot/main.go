package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"registrybot/internal/alert"
	"registrybot/internal/bot"
	"registrybot/internal/config"
	"registrybot/internal/digest"
	"registrybot/internal/registry"
	"registrybot/internal/sched"
	"registrybot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to optional yaml config (env vars take precedence)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	log := logx.New(logx.Config{Level: cfg.LogLevel, File: cfg.LogFile})

	reg := registry.New(cfg.RegistryURL, cfg.RequestTimeout,
		log.With(logx.String("comp", "registry")))

	tg, err := bot.New(bot.Config{
		Token:       cfg.BotToken,
		PollTimeout: cfg.PollTimeout,
	}, reg, log.With(logx.String("comp", "telegram")))
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	disp := alert.New(reg, tg, cfg.ChatID, log.With(logx.String("comp", "alerts")))
	daily := digest.New(reg, tg, cfg.ChatID, log.With(logx.String("comp", "digest")))

	jobs := sched.New(log.With(logx.String("comp", "sched")), 2*time.Minute)
	if err := jobs.AddEvery("alerts.poll", cfg.CheckInterval, disp.Run); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	if err := jobs.AddDaily("daily.summary", cfg.SummaryHour, cfg.SummaryMinute, daily.Run); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	tg.Start(ctx)
	jobs.Start(ctx)

	log.Info("started",
		logx.String("registry", cfg.RegistryURL),
		logx.Duration("check_interval", cfg.CheckInterval),
		logx.String("daily_summary", cfg.DailySummaryTime))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	jobs.Stop(stopCtx)
	log.Info("stopped")
}
