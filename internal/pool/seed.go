package pool

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tenantd/internal/record"
)

// SeedProject describes one pool project to register at startup.
type SeedProject struct {
	ProjectID string            `koanf:"project_id"`
	Metadata  map[string]string `koanf:"metadata"`
}

// Seed registers the configured pool projects, skipping ones already
// known. Registration is idempotent so the daemon can seed on every
// start.
func Seed(ctx context.Context, store record.Store, projects []SeedProject, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, p := range projects {
		if p.ProjectID == "" {
			return fmt.Errorf("pool seed entry missing project_id")
		}
		_, err := store.Register(ctx, p.ProjectID, record.TypePool, p.Metadata)
		if errors.Is(err, record.ErrAlreadyRegistered) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seeding pool project %s: %w", p.ProjectID, err)
		}
		logger.Info("registered pool project", zap.String("project_id", p.ProjectID))
	}
	return nil
}
