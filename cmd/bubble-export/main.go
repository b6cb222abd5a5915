package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/diwise/bubble-client/internal/pkg/application/exporter"
	"github.com/diwise/bubble-client/pkg/bubble/cache"
	"github.com/diwise/bubble-client/pkg/bubble/client"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const appName string = "bubble-export"

func main() {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	defer cleanup()

	ctx, flags := parseExternalConfig(ctx, defaultFlags())

	cfgFile, err := os.Open(flags[configPath])
	if err != nil {
		log.Error("failed to open export configuration", "path", flags[configPath], "err", err.Error())
		os.Exit(1)
	}
	defer cfgFile.Close()

	out := io.WriteCloser(os.Stdout)
	if flags[outputPath] != "-" {
		out, err = os.Create(flags[outputPath])
		if err != nil {
			log.Error("failed to create output file", "path", flags[outputPath], "err", err.Error())
			os.Exit(1)
		}
	}
	defer out.Close()

	count, err := run(ctx, flags, cfgFile, out)
	if err != nil {
		log.Error("export failed", "count", count, "err", err.Error())
		os.Exit(1)
	}

	log.Info("done exporting", "count", count)
}

func run(ctx context.Context, flags FlagMap, cfgFile io.Reader, out io.Writer) (int, error) {
	cfg, err := exporter.LoadConfiguration(cfgFile)
	if err != nil {
		return 0, fmt.Errorf("failed to load export configuration: %w", err)
	}

	timeout, err := time.ParseDuration(flags[requestTimeout])
	if err != nil {
		return 0, fmt.Errorf("invalid request timeout %q: %w", flags[requestTimeout], err)
	}

	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}

	c := client.NewClient(flags[baseURL], flags[apiToken],
		client.Debug(flags[debugEnabled]),
		client.HTTPClient(httpClient),
	)

	objectCache, err := cache.New(cache.DefaultConfig())
	if err != nil {
		return 0, err
	}

	return exporter.New(c, *cfg, exporter.WithCache(objectCache)).Export(ctx, out)
}
