package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/audiolibrelab/soundcheck/internal/service"
)

// executePipeline runs the steps that follow startStep in --pipeline
func executePipeline(ctx context.Context, svc *service.Service, startStep rune, path string) error {
	if pipeline == "" {
		return nil
	}

	steps := []rune(strings.ToLower(pipeline))

	// Find the starting position in the pipeline
	startIndex := -1
	for i, step := range steps {
		if step == startStep {
			startIndex = i
			break
		}
	}

	if startIndex == -1 {
		return fmt.Errorf("step '%c' not found in pipeline '%s'", startStep, pipeline)
	}

	remaining := string(steps[startIndex+1:])
	if remaining == "" {
		return nil
	}

	return svc.RunPipeline(ctx, remaining, path, os.Stdin, os.Stdout)
}
