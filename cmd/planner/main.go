package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_planner/internal/pkg/config"
	"github.com/ohowland/cgc_planner/internal/pkg/logging"
	"github.com/ohowland/cgc_planner/internal/pkg/model"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"github.com/ohowland/cgc_planner/internal/pkg/runner"
	"github.com/ohowland/cgc_planner/internal/pkg/webservice"
	"github.com/spf13/pflag"
	"gopkg.in/cheggaaa/pb.v1"
)

func main() {
	fs := pflag.NewFlagSet("planner", pflag.ExitOnError)
	config.Flags(fs)
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(err, "planner failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logr.Logger) error {
	pid, err := uuid.NewUUID()
	if err != nil {
		return err
	}
	pub := msg.NewPublisher(pid)
	defer pub.Close()

	log.Info("connecting sinks")
	sinks, err := runner.OpenSinks(ctx, cfg, pub, log)
	if err != nil {
		return err
	}
	defer sinks.Stop()

	var serveErr chan error
	if cfg.Web.Listen != "" {
		store := webservice.NewStore()
		if err := sinks.Attach(store, pub, log, msg.Status, msg.Result); err != nil {
			return err
		}
		app := &webservice.App{Store: store, Log: log.WithName("web")}
		serveErr = make(chan error, 1)
		go func() { serveErr <- app.Serve(ctx, cfg.Web.Listen) }()
	}

	bar := newProgressBar()
	res, err := runner.New(cfg, pub, log, runner.WithObserver(bar.observe)).Run(ctx)
	bar.finish()
	if err != nil {
		return err
	}
	for _, u := range res.Units {
		log.V(1).Info("capacity", "unit", u.Label, "capacity", u.Capacity, "storage", u.StorageCapacity)
	}

	if serveErr == nil {
		return nil
	}
	log.Info("run complete, serving results until interrupted", "addr", cfg.Web.Listen)
	return <-serveErr
}

// progressBar shows model assembly on the terminal.
type progressBar struct {
	bar *pb.ProgressBar
}

func newProgressBar() *progressBar { return &progressBar{} }

func (p *progressBar) observe(pr model.Progress) {
	if p.bar == nil {
		p.bar = pb.StartNew(pr.Total)
	}
	p.bar.Prefix(pr.Stage + " ")
	p.bar.Set(pr.Done)
}

func (p *progressBar) finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
