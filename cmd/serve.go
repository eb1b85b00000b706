package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kbatch-dev/kbatch-proxy/internal/appctx"
	"github.com/kbatch-dev/kbatch-proxy/internal/auth"
	"github.com/kbatch-dev/kbatch-proxy/internal/cluster"
	"github.com/kbatch-dev/kbatch-proxy/internal/config"
	"github.com/kbatch-dev/kbatch-proxy/internal/httpapi"
	"github.com/kbatch-dev/kbatch-proxy/internal/metrics"
	"github.com/kbatch-dev/kbatch-proxy/internal/profilestore"
)

// shutdownGracePeriod bounds how long in-flight requests (including
// streaming log relays) get to finish once a shutdown signal arrives.
const shutdownGracePeriod = 15 * time.Second

// newServeCmd creates the Cobra command for starting the kbatch-proxy HTTP
// server. Flags win over environment variables, which win over the
// documented defaults (config.Defaults, internal/config/config.go's
// LoadEnv).
func newServeCmd() *cobra.Command {
	var (
		httpAddr             string
		identityServiceURL   string
		requiredScope        string
		jupyterHubAPIToken   string
		kbatchPrefix         string
		jobTemplateFile      string
		profileFile          string
		settingsFile         string
		createUserNamespace  bool
		jobTTLSeconds        int32
		jobMaxCodeBytes      int64
		inCluster            bool
		kubeconfigPath       string
		qpsLimit             float32
		burstLimit           int
		debugMode            bool
		allowPrivateIdentity bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the kbatch-proxy HTTP server",
		Long: `serve starts the kbatch-proxy HTTP server, which authenticates
callers against an identity service, materializes submitted Job/CronJob
specifications into per-user namespaces, and relays logs and resource
state back to the caller.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Defaults()
			cfg.HTTPAddr = firstNonEmpty(httpAddr, cfg.HTTPAddr)
			cfg.IdentityServiceURL = identityServiceURL
			cfg.RequiredScope = firstNonEmpty(requiredScope, cfg.RequiredScope)
			cfg.JupyterHubAPIToken = jupyterHubAPIToken
			cfg.KbatchPrefix = kbatchPrefix
			cfg.KbatchJobTemplateFile = jobTemplateFile
			cfg.KbatchProfileFile = profileFile
			cfg.InCluster = inCluster
			cfg.KubeconfigPath = kubeconfigPath

			if err := cfg.LoadEnv(settingsFile); err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			if cmd.Flags().Changed("create-user-namespace") {
				cfg.KbatchCreateUserNamespace = createUserNamespace
			}
			if cmd.Flags().Changed("job-ttl-seconds") {
				cfg.KbatchJobTTLSecondsAfterFinished = jobTTLSeconds
			}
			if cmd.Flags().Changed("job-max-code-bytes") {
				cfg.KbatchJobMaxCodeBytes = jobMaxCodeBytes
			}
			if cmd.Flags().Changed("qps-limit") {
				cfg.QPSLimit = qpsLimit
			}
			if cmd.Flags().Changed("burst-limit") {
				cfg.BurstLimit = burstLimit
			}

			if err := cfg.LoadTemplateAndProfiles(); err != nil {
				return fmt.Errorf("load job template/profiles: %w", err)
			}

			if cfg.IdentityServiceURL == "" {
				return fmt.Errorf("identity service URL is required (--identity-service-url or KBATCH_IDENTITY_SERVICE_URL)")
			}
			if err := validateSecureURL(cfg.IdentityServiceURL, "identity service URL", allowPrivateIdentity); err != nil {
				return err
			}

			// KbatchInitLogging controls whether kbatch-proxy installs its own
			// structured JSON handler; when false (e.g. a deployment that
			// configures logging itself), slog's default handler is left in
			// place.
			logger := slog.Default()
			if cfg.KbatchInitLogging {
				level := slog.LevelInfo
				if debugMode {
					level = slog.LevelDebug
				}
				logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
			}

			return runServe(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (default :8000)")
	cmd.Flags().StringVar(&identityServiceURL, "identity-service-url", "", "Identity service URL used to resolve bearer tokens (can also be set via KBATCH_IDENTITY_SERVICE_URL)")
	cmd.Flags().StringVar(&requiredScope, "required-scope", "", "OAuth scope every caller's token must carry")
	cmd.Flags().StringVar(&jupyterHubAPIToken, "jupyterhub-api-token", "", "JupyterHub API token stored in the configuration (can also be set via JUPYTERHUB_API_TOKEN); identity-service lookups forward each caller's own token and do not use it")
	cmd.Flags().StringVar(&kbatchPrefix, "kbatch-prefix", "", "Path prefix prepended to every route (can also be set via KBATCH_PREFIX)")
	cmd.Flags().StringVar(&jobTemplateFile, "job-template-file", "", "Path to a YAML admin Job template merged into every submission")
	cmd.Flags().StringVar(&profileFile, "profile-file", "", "Path to a YAML profile map served at /profiles/")
	cmd.Flags().StringVar(&settingsFile, "settings-file", "", "Optional dotenv-style settings file (can also be set via KBATCH_SETTINGS_PATH)")
	cmd.Flags().BoolVar(&createUserNamespace, "create-user-namespace", true, "Create a caller's namespace on first submission if it doesn't exist")
	cmd.Flags().Int32Var(&jobTTLSeconds, "job-ttl-seconds", 0, "ttlSecondsAfterFinished stamped onto every submitted Job (default 3600)")
	cmd.Flags().Int64Var(&jobMaxCodeBytes, "job-max-code-bytes", 0, "Maximum accepted size of a submitted code blob in bytes (default 1 MiB)")
	cmd.Flags().BoolVar(&inCluster, "in-cluster", false, "Use in-cluster service-account authentication instead of a kubeconfig")
	cmd.Flags().StringVar(&kubeconfigPath, "kubeconfig", "", "Path to a kubeconfig file (default $KUBECONFIG or ~/.kube/config)")
	cmd.Flags().Float32Var(&qpsLimit, "qps-limit", 0, "QPS limit for Kubernetes API calls (default 20.0)")
	cmd.Flags().IntVar(&burstLimit, "burst-limit", 0, "Burst limit for Kubernetes API calls (default 30)")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&allowPrivateIdentity, "allow-private-identity-service", false, "Allow the identity service URL to resolve to a private/loopback address or use plain HTTP (for in-cluster deployments)")

	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// runServe assembles the AppContext and blocks serving HTTP until the
// process receives SIGINT/SIGTERM.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	client, err := cluster.NewRealClient(cluster.Config{
		InCluster:      cfg.InCluster,
		KubeconfigPath: cfg.KubeconfigPath,
		QPS:            cfg.QPSLimit,
		Burst:          cfg.BurstLimit,
	})
	if err != nil {
		return fmt.Errorf("build kubernetes client: %w", err)
	}

	identity := &auth.HTTPIdentityService{BaseURL: cfg.IdentityServiceURL}
	authenticator := auth.NewAuthenticator(identity, cfg.RequiredScope)

	registry := prometheus.NewRegistry()
	app := &appctx.AppContext{
		Config:        cfg,
		Profiles:      profilestore.New(cfg.Profiles),
		Authenticator: authenticator,
		Client:        client,
		Metrics:       metrics.New(registry),
		Logger:        logger,
	}

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.NewServer(app))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	shutdownCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting kbatch-proxy", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
	case <-shutdownCtx.Done():
		log.Println("shutting down kbatch-proxy")
		shutdownTimeout, cancelTimeout := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancelTimeout()
		if err := srv.Shutdown(shutdownTimeout); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}
