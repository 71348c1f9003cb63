package dashboard

import (
	"context"
	"time"

	"github.com/gentyr/gentyr-sub005/internal/accounts"
	"github.com/gentyr/gentyr-sub005/internal/agents"
	"github.com/gentyr/gentyr-sub005/internal/api"
	"github.com/gentyr/gentyr-sub005/internal/config"
	"github.com/gentyr/gentyr-sub005/internal/credentials"
	"github.com/gentyr/gentyr-sub005/internal/db"
	"github.com/gentyr/gentyr-sub005/internal/sessions"
	"github.com/gentyr/gentyr-sub005/internal/trajectory"
	"github.com/rs/zerolog"
)

// CoverageTokenName is the credential looked up for the coverage service.
const CoverageTokenName = "CODECOV_TOKEN"

const coverageTimeout = 10 * time.Second

// Sources bundles every reader the dashboard and the CLI render.
type Sources struct {
	Trajectory *trajectory.Reader
	Accounts   *accounts.Reader
	Agents     *agents.Reader
	Sessions   *sessions.Reader
	DeputyDB   string
	TestingDB  string

	Resolver      *credentials.Resolver
	CoverageURL   string
	CoverageOwner string
	CoverageRepo  string

	now    func() time.Time
	logger zerolog.Logger
}

func NewSources(cfg *config.Config, logger zerolog.Logger) *Sources {
	return &Sources{
		Trajectory:    trajectory.NewReader(cfg.SnapshotPath(), trajectory.WithLogger(logger)),
		Accounts:      accounts.NewReader(cfg.KeyRotationPath(), accounts.WithLogger(logger)),
		Agents:        agents.NewReader(cfg.AgentHistoryPath(), logger),
		Sessions:      sessions.NewReader(cfg.SessionDir(), sessions.DefaultWindow, logger),
		DeputyDB:      cfg.DeputyDBPath(),
		TestingDB:     cfg.TestFailuresDBPath(),
		Resolver:      credentials.NewResolver(cfg.VaultMappingsPath(), logger),
		CoverageURL:   cfg.CoverageURL,
		CoverageOwner: cfg.CoverageOwner,
		CoverageRepo:  cfg.CoverageRepo,
		now:           time.Now,
		logger:        logger,
	}
}

func (s *Sources) Deputy() (*db.DeputySummary, error) {
	return db.ReadDeputy(s.DeputyDB, s.now())
}

// Testing reads the failure tracker and, when a coverage repository is
// configured and a token resolves, attaches the project coverage. Coverage
// lookup failures are logged and leave Coverage nil.
func (s *Sources) Testing(ctx context.Context) (*db.TestingSummary, error) {
	summary, err := db.ReadTestFailures(s.TestingDB)
	if err != nil {
		return nil, err
	}
	if s.CoverageOwner == "" || s.CoverageRepo == "" || s.Resolver == nil {
		return summary, nil
	}

	ctx, cancel := context.WithTimeout(ctx, coverageTimeout)
	defer cancel()

	cred, err := s.Resolver.Resolve(ctx, CoverageTokenName)
	if err != nil {
		s.logger.Debug().Err(err).Msg("coverage token unavailable")
		return summary, nil
	}

	pct, err := api.NewCoverageClient(s.CoverageURL, cred.Value).ProjectCoverage(ctx, s.CoverageOwner, s.CoverageRepo)
	if err != nil {
		s.logger.Warn().Err(err).Str("repo", s.CoverageOwner+"/"+s.CoverageRepo).Msg("fetching coverage failed")
		return summary, nil
	}
	summary.Coverage = &pct
	return summary, nil
}
