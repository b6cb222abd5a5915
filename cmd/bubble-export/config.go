package main

import (
	"context"
	"flag"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
)

type FlagType int
type FlagMap map[FlagType]string

const (
	baseURL FlagType = iota
	apiToken
	debugEnabled

	configPath
	outputPath
	requestTimeout
)

func parseExternalConfig(ctx context.Context, flags FlagMap) (context.Context, FlagMap) {

	envOrDef := env.GetVariableOrDefault
	flags[baseURL] = envOrDef(ctx, "BUBBLE_BASE_URL", flags[baseURL])
	flags[apiToken] = envOrDef(ctx, "BUBBLE_API_TOKEN", flags[apiToken])
	flags[debugEnabled] = envOrDef(ctx, "BUBBLE_DEBUG", flags[debugEnabled])

	apply := func(f FlagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	flag.Func("config", "a yaml file describing what to export", apply(configPath))
	flag.Func("out", "the file to write to, or - for stdout", apply(outputPath))
	flag.Func("url", "the base url of the application", apply(baseURL))
	flag.Func("timeout", "the timeout of each request, e.g. 30s", apply(requestTimeout))
	flag.Parse()

	return ctx, flags
}

func defaultFlags() FlagMap {
	return FlagMap{
		configPath:     "/opt/bubble/config/export.yaml",
		outputPath:     "-",
		debugEnabled:   "false",
		requestTimeout: "30s",
	}
}
