package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Trends runs the trend pipeline once and prints the result as JSON.
func (a *App) Trends(ctx context.Context, opts TrendsOptions) error {
	client := a.newGateway()
	pipeline, err := a.newPipeline(client)
	if err != nil {
		return err
	}

	result, err := pipeline.Fetch(ctx, opts.Range)
	if err != nil {
		return fmt.Errorf("trend query failed: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
