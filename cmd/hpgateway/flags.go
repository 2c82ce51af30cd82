package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/config"
	"github.com/nerrad567/hashpipe-gateway/internal/status"
)

// configEnv names the environment variable consulted when --config is absent.
const configEnv = "HPGW_CONFIG"

// options holds the parsed command line. Only flags the operator actually
// set are applied on top of the loaded configuration.
type options struct {
	fs *pflag.FlagSet

	configPath  string
	create      bool
	delay       float64
	domain      string
	foreground  bool
	gwname      string
	instances   string
	notify      bool
	prometheus  string
	server      string
	noExpire    bool
	showVersion bool
}

func newFlagSet(out io.Writer) (*pflag.FlagSet, *options) {
	o := &options{}
	fs := pflag.NewFlagSet("hpgateway", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.SortFlags = false
	fs.Usage = func() {
		_, _ = fmt.Fprintf(out, "Usage: hpgateway [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&o.configPath, "config", "", "YAML configuration file (or $"+configEnv+")")
	fs.BoolVarP(&o.create, "create", "c", false, "create missing status buffers")
	fs.Float64VarP(&o.delay, "delay", "d", config.DefaultDelay, "seconds between status publications")
	fs.StringVarP(&o.domain, "domain", "D", "hashpipe", "domain used in keys and channels")
	fs.BoolVarP(&o.foreground, "foreground", "f", false, "run in the foreground (always the case)")
	fs.StringVarP(&o.gwname, "gwname", "g", "", "gateway name (default: hostname)")
	fs.StringVarP(&o.instances, "instances", "i", "0,1,2,3", "comma separated instance ids")
	fs.BoolVarP(&o.notify, "notify", "n", false, "publish an update notification after each cycle")
	fs.StringVarP(&o.prometheus, "prometheus", "p", "", "exporter YAML file; enables the metrics exporter")
	fs.StringVarP(&o.server, "server", "s", "redishost", "redis server as host or host:port")
	fs.BoolVarP(&o.noExpire, "no-expire", "x", false, "do not set TTLs on status keys")
	fs.BoolVar(&o.showVersion, "version", false, "print version and exit")

	o.fs = fs
	return fs, o
}

// parseFlags parses args. pflag.ErrHelp is returned unchanged after usage
// has been written.
func parseFlags(args []string, out io.Writer) (*options, error) {
	fs, o := newFlagSet(out)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

// configFile returns the configuration path from --config or the environment.
func (o *options) configFile() string {
	if o.configPath != "" {
		return o.configPath
	}
	return os.Getenv(configEnv)
}

// apply overlays explicitly set flags onto cfg.
func (o *options) apply(cfg *config.Config) error {
	changed := o.fs.Changed

	if changed("create") {
		cfg.Gateway.Create = o.create
	}
	if changed("delay") {
		cfg.Gateway.Delay = o.delay
	}
	if changed("domain") {
		cfg.Gateway.Domain = o.domain
	}
	if changed("gwname") {
		cfg.Gateway.Name = o.gwname
	}
	if changed("instances") {
		ids, err := status.ParseInstanceList(o.instances)
		if err != nil {
			return fmt.Errorf("--instances: %w", err)
		}
		instances := make([]int, 0, len(ids))
		for _, id := range ids {
			instances = append(instances, int(id))
		}
		cfg.Gateway.Instances = instances
	}
	if changed("notify") {
		cfg.Gateway.Notify = o.notify
	}
	if changed("no-expire") {
		cfg.Gateway.Expire = !o.noExpire
	}
	if changed("server") {
		host, port, err := splitServer(o.server)
		if err != nil {
			return fmt.Errorf("--server: %w", err)
		}
		cfg.Redis.Host = host
		if port != 0 {
			cfg.Redis.Port = port
		}
	}
	if changed("prometheus") {
		if err := cfg.LoadExporter(o.prometheus); err != nil {
			return err
		}
	}
	return nil
}

// splitServer accepts "host" or "host:port". A zero port means none given.
func splitServer(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		if s == "" {
			return "", 0, fmt.Errorf("empty server address")
		}
		return s, 0, nil //nolint:nilerr // bare host
	}
	if host == "" {
		return "", 0, fmt.Errorf("missing host in %q", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q", s)
	}
	return host, port, nil
}
