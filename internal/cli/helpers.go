package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aretw0/ramal/internal/config"
	"github.com/aretw0/ramal/internal/logging"
	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/ports"
)

// ErrNoFlows is returned when a store holds no active flow to pick.
var ErrNoFlows = errors.New("no active flows")

// Overrides are the command-line flags that win over the config file.
type Overrides struct {
	FlowsDir  string
	LogLevel  string
	LogFormat string
}

// LoadConfig reads the config at path and applies the flag overrides.
func LoadConfig(path string, o Overrides) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if o.FlowsDir != "" {
		cfg.Flows.Source = config.SourceFile
		cfg.Flows.Dir = o.FlowsDir
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	return *cfg, cfg.Validate()
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.Config) (*slog.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format)
}

// DefaultFlow picks the flow to run when none was named: "default" when
// present, otherwise the only active flow.
func DefaultFlow(ctx context.Context, graphs ports.GraphStore) (string, error) {
	lister, ok := graphs.(ports.FlowLister)
	if !ok {
		return "", fmt.Errorf("flow store cannot list flows; pass --flow")
	}
	flows, err := lister.ListFlows(ctx)
	if err != nil {
		return "", err
	}

	var active []string
	for _, f := range flows {
		if f.Status != domain.FlowActive {
			continue
		}
		if f.ID == "default" {
			return f.ID, nil
		}
		active = append(active, f.ID)
	}
	switch len(active) {
	case 0:
		return "", ErrNoFlows
	case 1:
		return active[0], nil
	}
	sort.Strings(active)
	return "", fmt.Errorf("several active flows (%s); pass --flow", strings.Join(active, ", "))
}
