package main

import (
	"context"
	"flag"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
)

type FlagType int
type FlagMap map[FlagType]string

const (
	listenAddress FlagType = iota
	servicePort

	seedPath
	opaPath
	apiToken
	notifyEndpoint
)

func parseExternalConfig(ctx context.Context, flags FlagMap) (context.Context, FlagMap) {

	// Allow environment variables to override certain defaults
	envOrDef := env.GetVariableOrDefault
	flags[servicePort] = envOrDef(ctx, "SERVICE_PORT", flags[servicePort])
	flags[apiToken] = envOrDef(ctx, "BUBBLE_API_TOKEN", flags[apiToken])
	flags[notifyEndpoint] = envOrDef(ctx, "NOTIFY_ENDPOINT", flags[notifyEndpoint])

	apply := func(f FlagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	// Allow command line arguments to override defaults and environment variables
	flag.Func("seed", "a yaml file with objects to load at startup", apply(seedPath))
	flag.Func("policies", "an authorization policy file", apply(opaPath))
	flag.Func("port", "the port to listen on", apply(servicePort))
	flag.Parse()

	return ctx, flags
}

func defaultFlags() FlagMap {
	return FlagMap{
		listenAddress: "",
		servicePort:   "8080",
		apiToken:      "",
	}
}
