package validate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/config"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/grammar"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeGrammarMissing = "grammar_missing"
	codeGrammarInvalid = "grammar_invalid"
	codeAxisUncovered  = "axis_not_covered"
	codeAxisUndeclared = "axis_undeclared"
	codeLedgerCorrupt  = "ledger_corrupt"
	codeLedgerMissing  = "ledger_missing"
)

type Issue struct {
	Severity Severity
	Code     string
	Message  string
	World    string
	FilePath string
}

type Report struct {
	Issues []Issue
}

// HasErrors reports whether any issue has error severity.
func (r *Report) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// LedgerVerifier is the audit ledger's integrity surface.
type LedgerVerifier interface {
	Path(worldID string) string
	Exists(worldID string) (bool, error)
	Verify(worldID string) error
}

// Run checks every configured world's grammar against its declared axes and,
// when audit is non-nil, the integrity of its ledger file.
func Run(ctx context.Context, cfg *config.ProjectConfig, audit LedgerVerifier) (*Report, error) {
	if cfg == nil {
		return nil, fmt.Errorf("project config is required")
	}

	issues := make([]Issue, 0)
	for _, w := range cfg.Worlds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		issues = append(issues, validateGrammar(w)...)

		if audit == nil {
			continue
		}
		ledgerIssues, err := validateLedger(w.ID, audit)
		if err != nil {
			return nil, err
		}
		issues = append(issues, ledgerIssues...)
	}

	return &Report{Issues: issues}, nil
}

func validateGrammar(w config.World) []Issue {
	policy := filepath.Join(w.Root, grammar.PolicyPath)

	g, err := grammar.LoadResolutionGrammar(w.Root)
	if err != nil {
		code := codeGrammarInvalid
		if errors.Is(err, grammar.ErrNotFound) {
			code = codeGrammarMissing
		}
		return []Issue{{
			Severity: SeverityError,
			Code:     code,
			Message:  err.Error(),
			World:    w.ID,
			FilePath: policy,
		}}
	}

	var issues []Issue
	if err := grammar.CheckCoverage(g, w.Axes); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     codeAxisUncovered,
			Message:  err.Error(),
			World:    w.ID,
			FilePath: policy,
		})
	}
	if extra := grammar.Undeclared(g, w.Axes); len(extra) > 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarn,
			Code:     codeAxisUndeclared,
			Message:  fmt.Sprintf("grammar axes not declared by the world: %s", strings.Join(extra, ", ")),
			World:    w.ID,
			FilePath: policy,
		})
	}
	return issues
}

func validateLedger(worldID string, audit LedgerVerifier) ([]Issue, error) {
	exists, err := audit.Exists(worldID)
	if err != nil {
		return nil, fmt.Errorf("checking ledger for world %s: %w", worldID, err)
	}
	if !exists {
		return []Issue{{
			Severity: SeverityWarn,
			Code:     codeLedgerMissing,
			Message:  "ledger is enabled but no ledger file exists yet",
			World:    worldID,
			FilePath: audit.Path(worldID),
		}}, nil
	}
	if err := audit.Verify(worldID); err != nil {
		return []Issue{{
			Severity: SeverityError,
			Code:     codeLedgerCorrupt,
			Message:  err.Error(),
			World:    worldID,
			FilePath: audit.Path(worldID),
		}}, nil
	}
	return nil, nil
}
