package feature

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/caseflow/caseflow/internal/storage"
)

// Publisher turns parsed feature files into persisted draft test cases
type Publisher struct {
	store storage.Storage
}

// NewPublisher creates a feature publisher backed by the given store
func NewPublisher(store storage.Storage) *Publisher {
	return &Publisher{store: store}
}

// PublishResult reports what one publish run produced
type PublishResult struct {
	Feature  string   `json:"feature"`
	ModuleID string   `json:"module_id,omitempty"`
	CaseIDs  []string `json:"case_ids"`
}

// PublishFile parses a .feature file from disk and persists its scenarios
// as draft cases. moduleOverride, when set, wins over the feature's
// @module tag.
func (p *Publisher) PublishFile(ctx context.Context, path, moduleOverride, actor string) (*PublishResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feature file: %w", err)
	}
	defer f.Close()
	return p.Publish(ctx, f, path, moduleOverride, actor)
}

// Publish parses gherkin source from r and persists the resulting drafts
func (p *Publisher) Publish(ctx context.Context, r io.Reader, filename, moduleOverride, actor string) (*PublishResult, error) {
	parsed, err := ParseFile(r, filename)
	if err != nil {
		return nil, err
	}

	moduleName := parsed.ModuleName
	if moduleOverride != "" {
		moduleName = moduleOverride
	}

	result := &PublishResult{Feature: parsed.Name}
	if moduleName != "" {
		module, err := p.store.GetModuleByName(ctx, moduleName)
		if err != nil {
			return nil, fmt.Errorf("module %q: %w", moduleName, err)
		}
		result.ModuleID = module.ID
	}

	for _, c := range parsed.Cases {
		c.ModuleID = result.ModuleID
		if err := p.store.CreateCase(ctx, c, actor); err != nil {
			return result, fmt.Errorf("failed to create case %q: %w", c.Title, err)
		}
		result.CaseIDs = append(result.CaseIDs, c.ID)
	}

	log.Printf("[FEATURE] published %d cases from %s", len(result.CaseIDs), filename)
	return result, nil
}
