package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/diwise/bubble-client/internal/pkg/application/sandbox"
	"github.com/diwise/bubble-client/internal/pkg/application/subscriptions"
	"github.com/diwise/bubble-client/internal/pkg/infrastructure/router"
	"github.com/diwise/bubble-client/internal/pkg/presentation/api/dataapi"
	"github.com/diwise/bubble-client/internal/pkg/presentation/api/dataapi/auth"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

const serviceName string = "bubble-sandbox"

func main() {
	serviceVersion := buildinfo.SourceVersion()

	ctx, logger, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion, "json")
	defer cleanup()

	ctx, flags := parseExternalConfig(ctx, defaultFlags())

	seed, err := openOrDefault(flags[seedPath], "")
	exitIf(err, logger.Error, "failed to open seed file")
	defer seed.Close()

	policies, err := openOrDefault(flags[opaPath], auth.DefaultPolicy)
	exitIf(err, logger.Error, "failed to open policy file")
	defer policies.Close()

	handler, stop, err := initialize(ctx, flags, seed, policies)
	exitIf(err, logger.Error, "failed to initialize sandbox")
	defer stop()

	address := flags[listenAddress] + ":" + flags[servicePort]
	logger.Info("starting to listen for connections", "address", address)

	err = http.ListenAndServe(address, handler)
	exitIf(err, logger.Error, "failed to listen for connections")
}

func initialize(ctx context.Context, flags FlagMap, seed, policies io.Reader) (http.Handler, func(), error) {
	if flags[apiToken] == "" {
		return nil, nil, fmt.Errorf("an api token is required")
	}

	cfg, err := sandbox.LoadConfiguration(seed)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load seed: %w", err)
	}

	store, err := sandbox.New(ctx, *cfg)
	if err != nil {
		return nil, nil, err
	}

	stop := func() {}

	if flags[notifyEndpoint] != "" {
		notifier, err := subscriptions.NewNotifier(ctx, flags[notifyEndpoint])
		if err != nil {
			return nil, nil, err
		}

		if err = notifier.Start(); err != nil {
			return nil, nil, err
		}

		stop = func() { notifier.Stop() }
		store = sandbox.WithNotifications(store, notifier)

		logging.GetFromContext(ctx).Info("notifying changes", "endpoint", flags[notifyEndpoint])
	}

	r := router.New(serviceName)

	err = dataapi.RegisterHandlers(ctx, r, policies, flags[apiToken], store)
	if err != nil {
		stop()
		return nil, nil, err
	}

	return r, stop, nil
}

func openOrDefault(path, contents string) (io.ReadCloser, error) {
	if path == "" {
		return io.NopCloser(strings.NewReader(contents)), nil
	}

	return os.Open(path)
}

func exitIf(err error, logger func(string, ...any), msg string, args ...any) {
	if err != nil {
		logger(msg, append(args, "err", err.Error())...)
		os.Exit(1)
	}
}
