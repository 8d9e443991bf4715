// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cloudwego/arcbuilder/internal/config"
	"github.com/cloudwego/arcbuilder/llm/log"
	"github.com/cloudwego/arcbuilder/llm/mcp"
	"github.com/cloudwego/arcbuilder/version"
)

const Usage = `arcbuilder <Action> <Argument> [Flags]
Action:
   build        generate a website from the natural-language prompt given as Argument
   mcp          run as a MCP server exposing the file tools of the project directory given as Argument
   version      print the version of arcbuilder
`

func main() {
	flags := flag.NewFlagSet("arcbuilder", flag.ExitOnError)

	flagHelp := flags.Bool("h", false, "Show help message.")
	flagVerbose := flags.Bool("verbose", false, "Verbose mode.")
	flagOutput := flags.String("o", "", "Output project directory (default: generated_project_<run-id>).")
	flagConfig := flags.String("c", "", "YAML config file.")
	flagEnv := flags.String("env", ".env", "dotenv file loaded before reading the environment.")
	flagMetrics := flags.String("metrics", "", "Write prometheus textfile metrics to this path.")

	var overrides buildOverrides
	flags.IntVar(&overrides.RecursionLimit, "recursion-limit", 0, "max stage visits of one run (default from config: 100)")
	flags.IntVar(&overrides.CoderMaxSteps, "coder-max-steps", 0, "max agent steps of one coder step (default from config: 40)")
	flags.IntVar(&overrides.StructuredRetries, "structured-retries", -1, "retries of malformed planner/architect output (default from config: 0)")
	flags.StringVar(&overrides.PromptsDir, "prompts", "", "directory with prompt template overrides")

	flags.Usage = func() {
		fmt.Fprint(os.Stderr, Usage)
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flags.PrintDefaults()
	}

	if len(os.Args) < 2 {
		flags.Usage()
		os.Exit(1)
	}
	action := strings.ToLower(os.Args[1])

	switch action {
	case "version":
		fmt.Fprintf(os.Stdout, "%s\n", version.Version)

	case "build":
		userPrompt := parseArgsAndFlags(flags, flagHelp, flagVerbose)
		if strings.TrimSpace(userPrompt) == "" {
			log.Error("Argument Prompt is required\n")
			os.Exit(1)
		}

		cfg, err := config.Load(*flagConfig, *flagEnv)
		if err != nil {
			log.Error("Failed to load config: %v\n", err)
			os.Exit(1)
		}
		if *flagVerbose {
			cfg.Verbose = true
			cfg.Log.Level = log.DebugLevel
		}
		if *flagMetrics != "" {
			cfg.MetricsFile = *flagMetrics
		}
		overrides.apply(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := runBuild(ctx, cfg, userPrompt, *flagOutput); err != nil {
			log.Error("Failed to build: %v\n", err)
			log.Close()
			os.Exit(1)
		}

	case "mcp":
		root := parseArgsAndFlags(flags, flagHelp, flagVerbose)
		if root == "" {
			log.Error("Argument Path is required\n")
			os.Exit(1)
		}

		svr, err := mcp.NewServer(mcp.ServerOptions{
			ServerName:    "arcbuilder",
			ServerVersion: version.Version,
			Verbose:       *flagVerbose,
			Root:          root,
		})
		if err != nil {
			log.Error("Failed to create MCP server: %v\n", err)
			os.Exit(1)
		}
		if err := svr.ServeStdio(); err != nil {
			log.Error("Failed to run MCP server: %v\n", err)
			os.Exit(1)
		}

	default:
		flags.Usage()
		os.Exit(1)
	}
}

func parseArgsAndFlags(flags *flag.FlagSet, flagHelp *bool, flagVerbose *bool) (arg string) {
	if len(os.Args) < 3 {
		flags.Usage()
		os.Exit(1)
	}
	arg = os.Args[2]
	if len(os.Args) > 3 {
		flags.Parse(os.Args[3:])
	}

	if flagHelp != nil && *flagHelp {
		flags.Usage()
		os.Exit(0)
	}

	if flagVerbose != nil && *flagVerbose {
		log.SetLogLevel(log.DebugLevel)
	}
	return arg
}
