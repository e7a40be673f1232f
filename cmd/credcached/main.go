// credcached maintains an in-memory cache of Gardener credential resources
// for one namespace scope and serves it over HTTP and WebSocket.
package main

import (
	"flag"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/grolu/credcache/internal/classify"
	"github.com/grolu/credcache/internal/credentials"
	"github.com/grolu/credcache/internal/datasource"
	"github.com/grolu/credcache/internal/gateway"
	"github.com/grolu/credcache/internal/notifier"
	"github.com/grolu/credcache/internal/store"
)

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func main() {
	var (
		listenAddr       string
		namespace        string
		resyncInterval   time.Duration
		allowedOrigins   string
		infraProviders   string
		dnsProviders     string
		webhookURL       string
		webhookTimeout   int
		webhookInsecure  bool
		webhookRate      int
		webhookAuthToken string
	)

	flag.StringVar(&listenAddr, "listen-address", ":8085", "The address the gateway binds to.")
	flag.StringVar(&namespace, "namespace", "", "Namespace scope to cache credentials for. Required.")
	flag.DurationVar(&resyncInterval, "resync-interval", 5*time.Minute, "How often to re-fetch the full snapshot.")
	flag.StringVar(&allowedOrigins, "allowed-origins", "", "Comma-separated origin allow-list for WebSocket connections. Empty accepts all origins.")
	flag.StringVar(&infraProviders, "infrastructure-providers", "aws,gcp,azure,openstack,alicloud", "Comma-separated infrastructure provider types.")
	flag.StringVar(&dnsProviders, "dns-providers", "aws-route53,google-clouddns,azure-dns,cloudflare-dns,openstack-designate", "Comma-separated DNS provider types.")
	flag.StringVar(&webhookURL, "webhook-url", "", "URL for mutation notifications (HTTP POST). Empty logs notifications instead.")
	flag.IntVar(&webhookTimeout, "webhook-timeout", 10, "Webhook HTTP request timeout in seconds.")
	flag.BoolVar(&webhookInsecure, "webhook-insecure-skip-verify", false, "Disable TLS certificate verification for webhook (insecure).")
	flag.IntVar(&webhookRate, "webhook-rate-per-minute", 60, "Maximum webhook notifications per minute.")
	flag.StringVar(&webhookAuthToken, "webhook-auth-token", "", "Bearer token for webhook Authorization header. Overridden by CREDCACHE_WEBHOOK_AUTH_TOKEN env var if set.")
	flag.Parse()

	if envToken := os.Getenv("CREDCACHE_WEBHOOK_AUTH_TOKEN"); envToken != "" {
		webhookAuthToken = envToken
	}

	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := logConfig.Build()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if namespace == "" {
		logger.Fatal("--namespace is required")
	}

	logger.Info("Starting credcached",
		zap.String("namespace", namespace),
		zap.String("listen_address", listenAddr),
		zap.Duration("resync_interval", resyncInterval),
	)

	cfg := ctrl.GetConfigOrDie()
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		logger.Fatal("Failed to create clientset", zap.Error(err))
	}
	dynamicClient, err := dynamic.NewForConfig(cfg)
	if err != nil {
		logger.Fatal("Failed to create dynamic client", zap.Error(err))
	}

	ctx := ctrl.SetupSignalHandler()

	// Notification sinks: log always, webhook when configured.
	sinks := notifier.MultiSink{notifier.NewLogSink(logger)}
	if webhookURL != "" {
		webhookSender, err := notifier.NewWebhookSender(logger, notifier.WebhookSenderConfig{
			URL:                webhookURL,
			TimeoutSeconds:     webhookTimeout,
			InsecureSkipVerify: webhookInsecure,
			RatePerMinute:      webhookRate,
			AuthToken:          webhookAuthToken,
		})
		if err != nil {
			logger.Fatal("Failed to create webhook sender", zap.Error(err))
		}
		webhookSender.Start(ctx)
		defer webhookSender.Close()
		sinks = append(sinks, webhookSender)
	}

	// The gateway broadcasts store changes but is built after the store;
	// bridge the cycle with an atomic reference.
	var gatewayRef atomic.Pointer[gateway.Server]
	st := store.New(func(event store.Event) {
		if g := gatewayRef.Load(); g != nil {
			g.Broadcast(event)
		}
	})

	source := datasource.NewKubeSource(logger, clientset, dynamicClient)
	manager := credentials.New(logger, source, st, sinks, namespace)

	classifier := classify.New(classify.Config{
		InfrastructureProviderTypes: splitList(infraProviders),
		DNSProviderTypes:            splitList(dnsProviders),
	})

	srv := gateway.NewServer(st, manager, classifier, gateway.ServerOptions{
		Addr:           listenAddr,
		AllowedOrigins: splitList(allowedOrigins),
		Logger:         logger,
	})
	gatewayRef.Store(srv)

	if err := manager.FetchAll(ctx); err != nil {
		// The store is empty and consistent; the refresher retries on its
		// next tick.
		logger.Error("Initial fetch failed", zap.Error(err))
	}

	go credentials.NewRefresher(logger, manager, resyncInterval).Run(ctx)

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("Gateway failed", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}
