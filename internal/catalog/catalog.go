package catalog

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"imagescout/internal/plugin"
	"imagescout/internal/store"
)

// Catalog is the image catalog plugin. It owns the catalog schema and
// exposes the image CRUD, stats, and export HTTP surface.
type Catalog struct {
	store  *store.SQLiteStore
	repo   ImageRepository
	logger *zap.Logger
}

// New creates the catalog plugin backed by the shared store.
func New(st *store.SQLiteStore) *Catalog {
	return &Catalog{store: st}
}

func (c *Catalog) Name() string    { return "catalog" }
func (c *Catalog) Version() string { return "1.0.0" }

// Init applies the catalog schema and builds the repository.
func (c *Catalog) Init(_ *viper.Viper, logger *zap.Logger) error {
	c.logger = logger

	if err := c.store.Migrate(context.Background(), c.Name(), migrations); err != nil {
		return fmt.Errorf("catalog migrations: %w", err)
	}

	c.repo = NewSQLiteImageRepository(c.store.DB())
	return nil
}

func (c *Catalog) Start(ctx context.Context) error {
	n, err := c.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count images: %w", err)
	}
	c.logger.Info("catalog started", zap.Int("images", n))
	return nil
}

func (c *Catalog) Stop() error { return nil }

// Repository exposes the image repository to other plugins. The advisor
// plugin uses it as the recommendation engine's candidate source.
func (c *Catalog) Repository() ImageRepository {
	return c.repo
}

// Routes returns the catalog HTTP surface, mounted by the server under
// /api/v1/catalog.
func (c *Catalog) Routes() []plugin.Route {
	h := &handler{repo: c.repo, logger: c.logger}
	return []plugin.Route{
		{Method: "GET", Path: "/images", Handler: h.listImages},
		{Method: "POST", Path: "/images", Handler: h.ingestAnalysis},
		{Method: "GET", Path: "/images/{name...}", Handler: h.getImage},
		{Method: "DELETE", Path: "/images/{name...}", Handler: h.deleteImage},
		{Method: "GET", Path: "/stats", Handler: h.stats},
		{Method: "GET", Path: "/languages", Handler: h.languages},
		{Method: "GET", Path: "/export", Handler: h.export},
		{Method: "POST", Path: "/restore", Handler: h.restore},
	}
}
