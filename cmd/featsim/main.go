// Command featsim is an interactive simulated instrument driver.
//
// It exposes a simulated two-channel function generator through the
// attribute framework: unit conversion, value mapping, range limits,
// read-once caching, indexed per-channel attributes, and runtime
// modifier overrides are all exercisable from the command line.
//
// Usage:
//
//	featsim [flags]
//
// Flags:
//
//	-config string   YAML modifier defaults applied to the class
//	-log string      Append access events to this CBOR log file
//	-metrics string  Serve Prometheus metrics on this address
//	-verbose         Mirror access events to stderr
package main

import (
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/featkit/featkit-go/pkg/accesslog"
	"github.com/featkit/featkit-go/pkg/capability"
	"github.com/featkit/featkit-go/pkg/featconfig"
)

var (
	configFile  string
	logFile     string
	metricsAddr string
	verbose     bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "YAML modifier defaults applied to the class")
	flag.StringVar(&logFile, "log", "", "Append access events to this CBOR log file")
	flag.StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address")
	flag.BoolVar(&verbose, "verbose", false, "Mirror access events to stderr")
}

func main() {
	flag.Parse()

	logger, closeLog, err := buildLogger()
	if err != nil {
		log.Fatalf("access log: %v", err)
	}
	defer closeLog()

	stats := capability.MultiStats{&capability.Recorder{}}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		stats = append(stats, capability.NewPromStats(reg))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	class := buildClass(logger, stats)

	if configFile != "" {
		doc, err := featconfig.ParseFile(configFile)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if err := doc.Apply(class); err != nil {
			log.Fatalf("config: %v", err)
		}
	}

	instance := NewFGen()

	r, err := newREPL(class, instance)
	if err != nil {
		log.Fatalf("readline: %v", err)
	}
	r.Run()
}

// buildLogger assembles the access event sink from the flags. The
// returned close function flushes the file logger, if any.
func buildLogger() (accesslog.Logger, func(), error) {
	loggers := make([]accesslog.Logger, 0, 2)
	closeLog := func() {}

	if logFile != "" {
		fl, err := accesslog.NewFileLogger(logFile)
		if err != nil {
			return nil, nil, err
		}
		loggers = append(loggers, fl)
		closeLog = func() { fl.Close() }
	}
	if verbose {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		loggers = append(loggers, accesslog.NewSlogAdapter(slog.New(handler)))
	}

	switch len(loggers) {
	case 0:
		return accesslog.NoopLogger{}, closeLog, nil
	case 1:
		return loggers[0], closeLog, nil
	default:
		return accesslog.NewMultiLogger(loggers...), closeLog, nil
	}
}
