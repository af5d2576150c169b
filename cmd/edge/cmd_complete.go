// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianEdge/internal/router"
	"github.com/AleutianAI/AleutianEdge/pkg/ux"
)

var (
	noCache        bool
	complexityHint string
)

var completeCmd = &cobra.Command{
	Use:   "complete [prompt]",
	Short: "Generate a completion for a prompt",
	Long: `Generate a completion. The prompt comes from the argument, or from
stdin when piped:

  edge complete "write a binary search in go"
  cat prompt.txt | edge complete`,
	Args: cobra.MaximumNArgs(1),
	RunE: runComplete,
}

func init() {
	completeCmd.Flags().BoolVar(&noCache, "no-cache", false,
		"bypass the response cache for this request")
	completeCmd.Flags().StringVar(&complexityHint, "complexity", "",
		"override complexity classification (simple|medium|complex)")
	rootCmd.AddCommand(completeCmd)
}

func runComplete(cmd *cobra.Command, args []string) error {
	prompt, err := readPrompt(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	req := router.Request{Text: prompt, Cacheable: !noCache}
	if complexityHint != "" {
		hint, err := parseComplexity(complexityHint)
		if err != nil {
			return err
		}
		req.Hint = &hint
	}

	spinner := ux.NewSpinner(os.Stderr, "generating")
	spinner.Start()
	resp, err := a.router.Complete(ctx, req)
	spinner.Stop()
	if err != nil {
		return err
	}

	fmt.Println(resp.Text)
	if verbose {
		source := resp.Backend
		if resp.Cached() {
			source = "cache (" + resp.CacheTier.String() + ")"
		}
		ux.Muted(os.Stderr, "[%s, %s, %s]", source, resp.Complexity, resp.Elapsed.Round(time.Millisecond))
	}
	return nil
}

// readPrompt takes the argument when given, otherwise reads stdin. An
// interactive terminal with no argument is an error rather than a hang.
func readPrompt(args []string) (string, error) {
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return "", fmt.Errorf("no prompt given: pass it as an argument or pipe it on stdin")
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("empty prompt on stdin")
	}
	return prompt, nil
}

func parseComplexity(name string) (router.Complexity, error) {
	switch name {
	case "simple":
		return router.ComplexitySimple, nil
	case "medium":
		return router.ComplexityMedium, nil
	case "complex":
		return router.ComplexityComplex, nil
	default:
		return 0, fmt.Errorf("unknown complexity %q (want simple, medium, or complex)", name)
	}
}
