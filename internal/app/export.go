package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"enteliwatch/internal/trend"
)

// Export runs a trend query and renders it as CSV and/or a PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	client := a.newGateway()
	pipeline, err := a.newPipeline(client)
	if err != nil {
		return err
	}

	result, err := pipeline.Fetch(ctx, opts.Range)
	if err != nil {
		return fmt.Errorf("trend query failed: %w", err)
	}
	if len(result.Records) == 0 {
		a.Logger.Info().Str("range", result.TimeRange).Msg("no records in range; nothing exported")
		return nil
	}

	a.Logger.Info().Str("range", result.TimeRange).Int("records", result.TotalRecords).Msg("exporting trend records")

	if opts.CSVPath != "" {
		if err := writeRecordsCSV(opts.CSVPath, result); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeRecordsPNG(opts.PNGPath, result); err != nil {
			return err
		}
	}

	return nil
}

func writeRecordsCSV(path string, result *trend.Result) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "temperature", "formatted_time", "interpolated"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, record := range result.Records {
		row := []string{
			record.Timestamp,
			strconv.FormatFloat(record.Temperature, 'f', -1, 64),
			record.FormattedTime,
			strconv.FormatBool(record.Interpolated),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeRecordsPNG(path string, result *trend.Result) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, 0, len(result.Records))
	observed := make([]float64, 0, len(result.Records))
	for _, record := range result.Records {
		ts, err := trend.NormalizeTimestamp(record.Timestamp)
		if err != nil {
			continue
		}
		x = append(x, ts)
		observed = append(observed, record.Temperature)
	}

	tempFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.1f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Zone Temperature",
			ValueFormatter: tempFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    fmt.Sprintf("Temperature (%s)", result.TimeRange),
				XValues: x,
				YValues: observed,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
