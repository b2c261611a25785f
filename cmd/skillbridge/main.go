package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/glimte/skillbridge/bridge"
	"github.com/glimte/skillbridge/health"
	"github.com/glimte/skillbridge/interceptors"
	"github.com/glimte/skillbridge/internal/config"
	"github.com/glimte/skillbridge/internal/logging"
	"github.com/glimte/skillbridge/internal/rabbitmq"
	"github.com/glimte/skillbridge/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// app holds everything the runtimes share
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	client   *http.Client
	counters *interceptors.Counters
	bridge   *bridge.Bridge
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "skillbridge",
		Short: "Forward smart home directives to Home Assistant",
		Long: `skillbridge relays voice assistant smart home directives to a Home Assistant
instance and returns its answer, translating authorization and server failures into
the assistant's error events.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (.yaml, .yml, .json, .jsonc)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newLambdaCmd(opts),
		newConsumeCmd(opts),
		newInvokeCmd(opts),
	)

	return rootCmd
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: cfg.Client.Timeout.Duration}
	counters := interceptors.NewCounters()
	chain := interceptors.NewDefaultInterceptorChainBuilder(logger).
		WithRecovery().
		WithLogging().
		WithMetrics(counters, bridge.ErrorKind).
		Build()

	b, err := bridge.NewBridge(cfg.BaseURL,
		bridge.WithHTTPClient(client),
		bridge.WithLogger(logger),
		bridge.WithInterceptorChain(chain),
	)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		counters: counters,
		bridge:   b,
	}, nil
}

func (a *app) healthRegistry() *health.Registry {
	registry := health.NewRegistry()
	registry.SetMetadata("version", version)
	registry.Register(health.NewBackendChecker(a.client, a.cfg.BaseURL+"/api/"))
	return registry
}

func (a *app) httpServer(registry *health.Registry) *server.Server {
	return server.New(a.bridge,
		server.WithLogger(a.logger),
		server.WithHealthRegistry(registry),
		server.WithCounters(a.counters),
	)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve directives over HTTP",
		Long:  "Accept directives on POST /directive and expose /healthz, /livez and /metrics.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			a.logger.Info("forwarding directives", "endpoint", a.bridge.Endpoint())
			return a.httpServer(a.healthRegistry()).ListenAndServe(ctx, a.cfg.Server.ListenAddr, a.cfg.Server.ShutdownTimeout.Duration)
		},
	}
}

func newLambdaCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve directives as a function runtime handler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}

			a.logger.Info("starting function handler", "endpoint", a.bridge.Endpoint())
			lambda.Start(server.LambdaHandler(a.bridge, bridge.ErrorKind))
			return nil
		},
	}
}

func newConsumeCmd(opts *rootOptions) *cobra.Command {
	var healthAddr string

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Serve directives from a RabbitMQ queue",
		Long: `Consume directives from the configured queue and publish each response to the
message's reply-to queue with the same correlation id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			if err := a.cfg.RequireAMQP(); err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			connManager := rabbitmq.NewConnectionManager(a.cfg.AMQP.URL,
				rabbitmq.WithLogger(a.logger),
				rabbitmq.WithReconnectDelay(a.cfg.AMQP.ReconnectDelay.Duration),
			)
			if err := connManager.Connect(ctx); err != nil {
				return err
			}
			defer connManager.Close()

			g, gctx := errgroup.WithContext(ctx)

			if healthAddr != "" {
				registry := a.healthRegistry()
				registry.Register(health.NewRabbitMQChecker(connManager, a.cfg.AMQP.Queue))
				g.Go(func() error {
					return a.httpServer(registry).ListenAndServe(gctx, healthAddr, a.cfg.Server.ShutdownTimeout.Duration)
				})
			}

			consumer := rabbitmq.NewConsumer(connManager, a.cfg.AMQP.Queue,
				rabbitmq.WithPrefetchCount(a.cfg.AMQP.Prefetch),
				rabbitmq.WithConsumerLogger(a.logger),
				rabbitmq.WithErrorClassifier(bridge.ErrorKind),
				rabbitmq.WithRetryDelay(a.cfg.AMQP.ReconnectDelay.Duration),
			)
			g.Go(func() error {
				return consumer.Run(gctx, a.bridge.HandleDirective)
			})

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&healthAddr, "health-addr", "", "Also serve health and metrics endpoints on this address")
	return cmd
}

func newInvokeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "invoke [file|-]",
		Short: "Forward a single directive and print the response",
		Long:  "Read one directive from a file, or from stdin when the argument is omitted or \"-\", and print the response document.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}

			raw, err := readDirective(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			out := cmd.OutOrStdout()
			resp, err := a.bridge.HandleDirective(ctx, raw)
			if err != nil {
				failure := server.InvocationFailure{ErrorType: bridge.ErrorKind(err), ErrorMessage: err.Error()}
				_ = json.NewEncoder(out).Encode(failure)
				return fmt.Errorf("%s: %w", failure.ErrorType, err)
			}

			_, err = fmt.Fprintln(out, strings.TrimSpace(string(resp)))
			return err
		},
	}
}

func readDirective(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read directive failed: %w", err)
	}
	return raw, nil
}
