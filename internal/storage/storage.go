package storage

import (
	"context"

	"github.com/caseflow/caseflow/internal/storage/sqlite"
	"github.com/caseflow/caseflow/internal/types"
)

// Storage defines the interface for portal storage backends
type Storage interface {
	// Test Cases
	CreateCase(ctx context.Context, c *types.TestCase, actor string) error
	GetCase(ctx context.Context, id string) (*types.TestCase, error)
	UpdateCase(ctx context.Context, id string, updates map[string]interface{}, actor string) error
	DeprecateCase(ctx context.Context, id string, reason string, actor string) error
	ListCases(ctx context.Context, filter types.CaseFilter) ([]*types.TestCase, error)

	// Tags
	AddTag(ctx context.Context, caseID, tag, actor string) error
	RemoveTag(ctx context.Context, caseID, tag, actor string) error
	GetTags(ctx context.Context, caseID string) ([]string, error)
	GetCasesByTag(ctx context.Context, tag string) ([]*types.TestCase, error)

	// Modules
	CreateModule(ctx context.Context, m *types.Module, actor string) error
	GetModule(ctx context.Context, id string) (*types.Module, error)
	GetModuleByName(ctx context.Context, name string) (*types.Module, error)
	UpdateModule(ctx context.Context, id string, updates map[string]interface{}, actor string) error
	DeleteModule(ctx context.Context, id string, actor string) error
	ListModules(ctx context.Context) ([]*types.Module, error)

	// Releases
	CreateRelease(ctx context.Context, r *types.Release, actor string) error
	GetRelease(ctx context.Context, id string) (*types.Release, error)
	UpdateRelease(ctx context.Context, id string, updates map[string]interface{}, actor string) error
	TransitionRelease(ctx context.Context, id string, next types.ReleaseStatus, actor string) error
	ListReleases(ctx context.Context) ([]*types.Release, error)
	LinkCase(ctx context.Context, releaseID, caseID, actor string) error
	UnlinkCase(ctx context.Context, releaseID, caseID, actor string) error
	SetRunResult(ctx context.Context, releaseID, caseID string, status types.RunStatus, actor string) error
	GetReleaseCases(ctx context.Context, releaseID string) ([]*types.CaseRun, error)
	LinkStory(ctx context.Context, releaseID, storyKey, actor string) error
	LinkTicket(ctx context.Context, releaseID, ticketKey, actor string) error
	GetReleaseSummary(ctx context.Context, releaseID string) (*types.ReleaseSummary, error)

	// JIRA mirrors
	UpsertStory(ctx context.Context, s *types.Story) error
	GetStory(ctx context.Context, key string) (*types.Story, error)
	ListStories(ctx context.Context) ([]*types.Story, error)
	UpsertTicket(ctx context.Context, t *types.ProductionTicket) error
	ListTickets(ctx context.Context) ([]*types.ProductionTicket, error)
	LinkStoryCase(ctx context.Context, storyKey, caseID, actor string) error
	GetStoryCases(ctx context.Context, storyKey string) ([]*types.TestCase, error)

	// Workbooks
	CreateWorkbook(ctx context.Context, w *types.Workbook, rows []*types.WorkbookRow, actor string) error
	GetWorkbook(ctx context.Context, id string) (*types.Workbook, error)
	ListWorkbooks(ctx context.Context) ([]*types.Workbook, error)
	GetWorkbookRows(ctx context.Context, workbookID string) ([]*types.WorkbookRow, error)
	GetWorkbookRow(ctx context.Context, rowID string) (*types.WorkbookRow, error)
	ReviewRow(ctx context.Context, rowID string, status types.RowStatus, reviewer, caseID string) error
	MarkRowDuplicate(ctx context.Context, rowID, duplicateOf string, similarity float64) error
	FinalizeWorkbook(ctx context.Context, workbookID, actor string) (types.WorkbookStatus, error)

	// Audit events - retention policy enforcement
	GetEvents(ctx context.Context, entityID string, limit int) ([]*types.Event, error)
	CleanupEventsByAge(ctx context.Context, retentionDays, batchSize int) (int, error)
	CleanupEventsByEntityLimit(ctx context.Context, perEntityLimit, batchSize int) (int, error)
	CleanupEventsByGlobalLimit(ctx context.Context, globalLimit, batchSize int) (int, error)
	GetEventCounts(ctx context.Context) (*sqlite.EventCounts, error)
	VacuumDatabase(ctx context.Context) error

	// Statistics
	GetStatistics(ctx context.Context) (*types.Statistics, error)

	// Config
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".caseflow/caseflow.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".caseflow/caseflow.db",
	}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.Path == "" {
		cfg.Path = ".caseflow/caseflow.db"
	}

	return sqlite.New(cfg.Path)
}
