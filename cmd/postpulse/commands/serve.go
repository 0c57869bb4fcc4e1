package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/postpulse/auth"
	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/logger"
	"github.com/teranos/postpulse/pulse/posting"
	"github.com/teranos/postpulse/server"
	"github.com/teranos/postpulse/sym"
)

// ServeCmd starts the HTTP trigger surface
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   sym.Pulse + " Start the HTTP trigger surface and the posting ticker",
	Long: `Serve the cron, authoring and admin endpoints, the live run feed and,
when server.grpc_port is set, the gRPC health service.

Unless --no-ticker is given and scheduler.interval_seconds is positive, an
in-process ticker runs the posting scheduler on that interval. External cron
calls remain safe alongside it: overlapping invocations never claim the same
job twice.`,
	RunE: runServe,
}

var (
	servePort     int
	serveGRPCPort int
	serveNoTicker bool
	serveOrigins  []string
	serveSecure   bool
)

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides server.port)")
	ServeCmd.Flags().IntVar(&serveGRPCPort, "grpc-port", -1, "gRPC health port, 0 disables (overrides server.grpc_port)")
	ServeCmd.Flags().BoolVar(&serveNoTicker, "no-ticker", false, "Disable the in-process posting ticker")
	ServeCmd.Flags().StringSliceVar(&serveOrigins, "allow-origin", nil, "Origins allowed to open the live feed")
	ServeCmd.Flags().BoolVar(&serveSecure, "secure-cookies", false, "Mark the admin session cookie Secure")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := a.runner(ctx)
	if err != nil {
		return err
	}
	collector, err := a.collector(ctx)
	if err != nil {
		return err
	}
	pipeline, err := a.pipeline()
	if err != nil {
		return err
	}
	if err := pipeline.Knowledge().Watch(ctx); err != nil {
		a.log.Warnw("Knowledge hot reload disabled", logger.FieldError, err)
	}

	authSvc, err := auth.NewService(a.cfg.Server, logger.ComponentLogger("auth"))
	if err != nil {
		return errors.Wrap(err, "failed to configure authentication")
	}
	authSvc.SetSecureCookies(serveSecure)
	if !authSvc.CronConfigured() {
		pterm.Warning.Println("server.cron_secret is not set: cron endpoints will reject every call")
	}
	if !authSvc.AdminConfigured() {
		pterm.Warning.Println("server.admin_password is not set: authoring endpoints answer 503")
	}

	opts := a.options()
	srv := server.New(server.Deps{
		Auth:           authSvc,
		Posting:        runner,
		Options:        opts,
		Analytics:      collector,
		Pipeline:       pipeline,
		Content:        a.content,
		Jobs:           a.jobs,
		AllowedOrigins: serveOrigins,
	}, logger.ComponentLogger("server"))

	interval := time.Duration(a.cfg.Scheduler.IntervalSeconds) * time.Second
	if !serveNoTicker && interval > 0 {
		ticker := posting.NewTicker(ctx, runner, srv.Hub(), posting.TickerConfig{
			Interval: interval,
			Options:  opts,
		}, logger.ComponentLogger("posting.ticker"))
		ticker.Start()
		defer ticker.Stop()
	}

	port := a.cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}
	grpcPort := a.cfg.Server.GRPCPort
	if serveGRPCPort >= 0 {
		grpcPort = serveGRPCPort
	}

	pterm.Info.Printf("Listening on :%d (driver %s, provider %s)\n", port, a.dialect, providerName(a.cfg.Outbound.Provider))
	return srv.Start(ctx, port, grpcPort)
}

func providerName(p string) string {
	if p == "" {
		return "stub"
	}
	return p
}
