package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"goveg/adapters/api"
	"goveg/adapters/excel"
	"goveg/adapters/filestore"
	"goveg/adapters/postgres"
	"goveg/adapters/rng"
	"goveg/app"
	"goveg/internal/config"
	"goveg/internal/errors"
	"goveg/internal/log"
	"goveg/internal/testkit"
	"goveg/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB *sqlx.DB

	// Ports
	Ledger  ports.LedgerPort
	RNG     ports.RNGPort
	Imagery ports.ImageryPort

	// Application services
	MetricService   *app.MetricService
	SurveyService   *app.SurveyService
	StageRunner     *app.StageRunner
	AnalysisService *app.AnalysisService

	// HTTP surface
	APIServer *api.Server
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		RNG:    rng.NewStreamAdapter(),
	}

	return c, nil
}

// Init wires the ledger, the imagery source, and the application services.
// Call it once before using any service on the container.
func (c *Container) Init(ctx context.Context) error {
	if err := c.initLedger(ctx); err != nil {
		return errors.Wrap(err, "failed to initialize ledger")
	}

	if err := c.initImagery(); err != nil {
		return errors.Wrap(err, "failed to initialize imagery source")
	}

	if err := c.initServices(); err != nil {
		return errors.Wrap(err, "failed to initialize services")
	}

	c.APIServer = api.NewServer(c.Ledger, c.Config.Server.GinMode)

	log.Infow("container initialized",
		"ledger", c.ledgerKind(),
		"imagery", c.Imagery != nil,
	)
	return nil
}

// initLedger selects the artifact store. A configured database URL means
// Postgres; without one, artifacts live in memory for this process only.
func (c *Container) initLedger(ctx context.Context) error {
	if c.Config.Database.URL == "" {
		c.Ledger = testkit.NewInMemoryLedgerAdapter()
		return nil
	}

	db, err := sqlx.Connect("postgres", c.Config.Database.URL)
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}
	if err := db.Ping(); err != nil {
		return errors.Wrap(err, "failed to ping database")
	}
	c.DB = db

	repo := postgres.NewLedgerRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return errors.Wrap(err, "failed to ensure ledger schema")
	}
	c.Ledger = repo
	return nil
}

// initImagery opens the configured image archive, when there is one.
// Processes that only serve results never set an archive path.
func (c *Container) initImagery() error {
	if c.Config.Paths.ArchivePath == "" {
		return nil
	}

	archive, err := filestore.OpenImageArchive(c.Config.Paths.ArchivePath)
	if err != nil {
		return err
	}
	c.Imagery = archive

	if c.Config.Paths.ClimateFile != "" {
		table, err := excel.NewClimateReader(c.Config.Paths.ClimateFile).Read()
		if err != nil {
			return errors.Wrap(err, "failed to read climate file")
		}
		c.Imagery = excel.NewClimateOverlay(archive, table)
	}
	return nil
}

// initServices constructs the application services over the wired ports
func (c *Container) initServices() error {
	metricService, err := app.NewMetricService(app.MetricConfig{
		TileRows:        c.Config.Metrics.TileRows,
		TileCols:        c.Config.Metrics.TileCols,
		Threshold:       c.Config.Metrics.Threshold,
		ComputeOffset50: c.Config.Metrics.ComputeOffset50,
		TileWorkers:     c.Config.Metrics.TileWorkers,
	})
	if err != nil {
		return err
	}
	c.MetricService = metricService

	c.StageRunner = app.NewStageRunner(c.Ledger, c.RNG)
	c.AnalysisService = app.NewAnalysisService(c.StageRunner, c.Ledger)

	// The survey service needs imagery; result-serving processes run without it
	if c.Imagery != nil {
		c.SurveyService = app.NewSurveyService(c.Imagery, c.MetricService, c.Ledger, app.SurveyConfig{
			DateWorkers:      c.Config.Survey.DateWorkers,
			StoreTileRecords: c.Config.Survey.StoreTileRecords,
		})
	}
	return nil
}

func (c *Container) ledgerKind() string {
	if c.DB != nil {
		return "postgres"
	}
	return "memory"
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	log.Sync()
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
