package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/systmms/afipws/internal/config"
	"github.com/systmms/afipws/internal/logging"
	"github.com/systmms/afipws/internal/metrics"
	"github.com/systmms/afipws/pkg/afip"
)

// loadServices loads the configuration and wires the AFIP services.
// The caller must Close the result.
func loadServices(ctx context.Context, cfg *config.Config) (*afip.Services, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	if cfg.Definition.Debug {
		cfg.Logger = cfg.Logger.WithDebug()
	}
	return cfg.Build(ctx, metrics.NewRecorder())
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// secretValue hides s unless show is set
func secretValue(s string, show bool) interface{} {
	if show {
		return s
	}
	return logging.Secret(s)
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format(time.RFC3339)
}

func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	return fmt.Sprintf("valid for %s", d.Truncate(time.Second))
}
