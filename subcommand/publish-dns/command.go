// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package publishdns implements the publish-dns subcommand: the
// long-running process that watches Gateways/HTTPRoutes/Ingresses,
// joins them through the registry, and publishes the result via the
// configured nameserver publishers. It exposes a readiness endpoint
// and, when enabled, a Prometheus metrics endpoint, and shuts down on
// SIGINT/SIGTERM.
package publishdns

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/armon/go-metrics"
	metricsprom "github.com/armon/go-metrics/prometheus"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/kubernetes"
	gatewayclientset "sigs.k8s.io/gateway-api/pkg/client/clientset/versioned"

	"github.com/clusterdns/clusterdns/internal/cluster"
	k8scluster "github.com/clusterdns/clusterdns/internal/cluster/k8s"
	"github.com/clusterdns/clusterdns/internal/publish"
	"github.com/clusterdns/clusterdns/internal/publish/multicast"
	"github.com/clusterdns/clusterdns/internal/publish/unicast"
	"github.com/clusterdns/clusterdns/internal/registry"
	"github.com/clusterdns/clusterdns/internal/supervisor"
	"github.com/clusterdns/clusterdns/subcommand"
	"github.com/clusterdns/clusterdns/subcommand/common"
	"github.com/clusterdns/clusterdns/subcommand/flags"
)

// shutdownTimeout is the deadline of the context passed to the
// supervisor's Shutdown. Neither publisher's Shutdown checks that
// context, so it does not cut their unregistering short.
const shutdownTimeout = 15 * time.Second

// Command is the publish-dns command.
type Command struct {
	UI cli.Ui

	flags *flag.FlagSet

	flagKubeconfig  string
	flagNamespace   string
	flagLogLevel    string
	flagLogJSON     bool
	flagMultiAddrIn bool
	flagListen      string

	flagMulticastEnable bool

	flagUnicastEnable    bool
	flagUnicastIP        string
	flagUnicastPort      int
	flagUnicastDomain    string
	flagUnicastKeyName   string
	flagUnicastKeySecret string

	flagEnableMetrics bool
	flagMetricsPort   string
	flagMetricsPath   string

	// overridable for tests
	source cluster.Source
	sigCh  chan os.Signal
	logger hclog.Logger
	ready  bool

	once sync.Once
	help string
}

func (c *Command) init() {
	c.flags = flag.NewFlagSet("", flag.ContinueOnError)

	c.flags.StringVar(&c.flagKubeconfig, "kubeconfig", "",
		"Path to a kubeconfig file. If unset, the in-cluster config is used.")
	c.flags.StringVar(&c.flagNamespace, "namespace", "",
		"Kubernetes namespace to watch. If unset, every namespace is watched.")
	c.flags.StringVar(&c.flagLogLevel, "log-level", "info",
		"Log verbosity level. Supported values (in order of detail) are \"trace\", "+
			"\"debug\", \"info\", \"warn\", and \"error\".")
	c.flags.BoolVar(&c.flagLogJSON, "log-json", false,
		"Enable or disable JSON output format for logging.")
	c.flags.BoolVar(&c.flagMultiAddrIn, "multi-address-ingress", true,
		"If true, an Ingress with more than one load-balancer address publishes one record "+
			"per address instead of only the first.")
	c.flags.StringVar(&c.flagListen, "listen", ":8080", "Address to bind the readiness listener to.")

	c.flags.BoolVar(&c.flagMulticastEnable, "multicast-enable", false,
		"Start the multicast (mDNS) publisher for .local. hostnames.")

	c.flags.BoolVar(&c.flagUnicastEnable, "unicast-enable", false,
		"Start the unicast dynamic-DNS-update publisher.")
	c.flags.StringVar(&c.flagUnicastIP, "unicast-ip", "127.0.0.1",
		"Address of the authoritative DNS server to send UPDATE messages to.")
	c.flags.IntVar(&c.flagUnicastPort, "unicast-port", 53,
		"Port of the authoritative DNS server to send UPDATE messages to.")
	c.flags.StringVar(&c.flagUnicastDomain, "unicast-domain", "",
		"Trailing-dotted zone to publish records for. Required if -unicast-enable is set.")
	c.flags.StringVar(&c.flagUnicastKeyName, "unicast-key-name", "",
		"TSIG key name used to sign unicast DNS updates. Leave unset for unsigned updates.")
	c.flags.StringVar(&c.flagUnicastKeySecret, "unicast-key-secret", "",
		"Base64-encoded TSIG key secret. Required if -unicast-key-name is set.")

	c.flags.BoolVar(&c.flagEnableMetrics, "enable-metrics", false, "Set this flag to enable metrics collection.")
	c.flags.StringVar(&c.flagMetricsPort, "metrics-port", "20300", "Port used for metrics scraping.")
	c.flags.StringVar(&c.flagMetricsPath, "metrics-path", "/metrics", "Path used for metrics scraping.")

	c.help = flags.Usage(help, c.flags)

	if c.sigCh == nil {
		c.sigCh = make(chan os.Signal, 1)
		signal.Notify(c.sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
}

func (c *Command) Run(args []string) int {
	c.once.Do(c.init)
	if err := c.flags.Parse(args); err != nil {
		return 1
	}
	if len(c.flags.Args()) > 0 {
		c.UI.Error("Should have no non-flag arguments.")
		return 1
	}
	if err := c.validateFlags(); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	if c.logger == nil {
		var err error
		c.logger, err = common.Logger(c.flagLogLevel, c.flagLogJSON)
		if err != nil {
			c.UI.Error(err.Error())
			return 1
		}
	}

	if c.source == nil {
		src, err := c.buildSource()
		if err != nil {
			c.UI.Error(fmt.Sprintf("Error building Kubernetes client: %s", err))
			return 1
		}
		c.source = src
	}

	sink, err := c.recordMetrics()
	if err != nil {
		c.logger.Error("Prometheus sink not initialized, metrics cannot be displayed", "error", err)
	}

	reg := registry.New(c.logger.Named("registry"), registry.Options{MultiAddressIngress: c.flagMultiAddrIn}, sink)

	var publishers []publish.Publisher
	if c.flagMulticastEnable {
		publishers = append(publishers, multicast.New(c.logger.Named("publish.multicast"), sink))
	}
	if c.flagUnicastEnable {
		publishers = append(publishers, unicast.New(c.logger.Named("publish.unicast"), unicast.Config{
			Zone:         c.flagUnicastDomain,
			Server:       fmt.Sprintf("%s:%d", c.flagUnicastIP, c.flagUnicastPort),
			TSIGKey:      c.flagUnicastKeyName,
			TSIGSecret:   c.flagUnicastKeySecret,
			DomainSuffix: c.flagUnicastDomain,
		}, sink))
	}
	if len(publishers) == 0 {
		c.logger.Warn("no publisher enabled; running with no external effect (set -multicast-enable and/or -unicast-enable)")
	}

	sup := supervisor.New(supervisor.Config{
		Log:        c.logger,
		Source:     c.source,
		Registry:   reg,
		Publishers: publishers,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()
	c.ready = true

	go c.serveReadiness()
	if c.flagEnableMetrics {
		go c.serveMetrics()
	}

	sig := <-c.sigCh
	c.logger.Info(fmt.Sprintf("%s received, shutting down", sig))
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := sup.Shutdown(shutdownCtx); err != nil {
		c.logger.Warn("one or more publishers failed to shut down cleanly", "error", err)
	}

	return 0
}

func (c *Command) buildSource() (cluster.Source, error) {
	restCfg, err := subcommand.K8SConfig(c.flagKubeconfig)
	if err != nil {
		return nil, fmt.Errorf("loading kubernetes config: %w", err)
	}

	core, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("building core clientset: %w", err)
	}
	gw, err := gatewayclientset.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("building gateway-api clientset: %w", err)
	}
	disco, err := discovery.NewDiscoveryClientForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("building discovery client: %w", err)
	}

	return k8scluster.New(c.logger.Named("cluster"), core, gw, disco, c.flagNamespace), nil
}

// recordMetrics builds the Prometheus sink every component's counters
// and gauges are registered against. A disabled or failed sink returns
// (nil, nil)/(nil, err) respectively; callers pass the result straight
// to registry.New/publisher constructors, which fall back to a
// blackhole sink on nil.
func (c *Command) recordMetrics() (*metrics.Metrics, error) {
	if !c.flagEnableMetrics {
		return nil, nil
	}

	opts := metricsprom.PrometheusOpts{
		CounterDefinitions: append(append([]metricsprom.CounterDefinition{}, registry.RegistryCounters...),
			append(multicast.Counters, unicast.Counters...)...),
		GaugeDefinitions: registry.RegistryGauges,
	}
	promSink, err := metricsprom.NewPrometheusSinkFrom(opts)
	if err != nil {
		return nil, err
	}

	return metrics.New(metrics.DefaultConfig("clusterdns"), promSink)
}

func (c *Command) serveReadiness() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/ready", c.handleReady)
	c.logger.Info(fmt.Sprintf("listening on %q for readiness checks", c.flagListen))
	if err := http.ListenAndServe(c.flagListen, mux); err != nil {
		c.logger.Error("readiness listener exited", "error", err)
	}
}

func (c *Command) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle(c.flagMetricsPath, promhttp.Handler())
	c.logger.Info(fmt.Sprintf("listening on :%s for metrics scraping", c.flagMetricsPort))
	if err := http.ListenAndServe(fmt.Sprintf(":%s", c.flagMetricsPort), mux); err != nil {
		c.logger.Error("metrics listener exited", "error", err)
	}
}

func (c *Command) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !c.ready {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Command) validateFlags() error {
	if c.flagUnicastEnable && c.flagUnicastDomain == "" {
		return fmt.Errorf("-unicast-domain is required when -unicast-enable is set")
	}
	if c.flagUnicastKeyName != "" && c.flagUnicastKeySecret == "" {
		return fmt.Errorf("-unicast-key-secret is required when -unicast-key-name is set")
	}
	return nil
}

func (c *Command) Synopsis() string { return synopsis }
func (c *Command) Help() string {
	c.once.Do(c.init)
	return c.help
}

const synopsis = "Watch cluster routing resources and publish their hostnames as DNS records."
const help = `
Usage: clusterdns publish-dns [options]

  Watches Gateway, HTTPRoute, and Ingress resources, joins them into DNS
  records, and publishes those records via multicast DNS and/or dynamic
  unicast DNS update.

`
