package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

// MappingService creates and removes commit to timesheet links.
type MappingService struct {
	mappings   port.MappingStore
	commits    port.CommitStore
	timesheets port.TimesheetStore
	authz      port.Authorizer
	dateWindow time.Duration
}

// NewMappingService creates a mapping service. dateWindowDays bounds the
// allowed gap between commit date and timesheet date on create.
func NewMappingService(mappings port.MappingStore, commits port.CommitStore, timesheets port.TimesheetStore, authz port.Authorizer, dateWindowDays int) *MappingService {
	if dateWindowDays <= 0 {
		dateWindowDays = 30
	}
	return &MappingService{
		mappings:   mappings,
		commits:    commits,
		timesheets: timesheets,
		authz:      authz,
		dateWindow: time.Duration(dateWindowDays) * 24 * time.Hour,
	}
}

// CreateMappingInput is the payload for linking a commit to a timesheet entry.
type CreateMappingInput struct {
	CommitID         string `json:"commit_id"`
	TimesheetEntryID string `json:"timesheet_entry_id"`
	Description      string `json:"description"`
}

// CreateMapping links one commit to one timesheet entry with method=manual.
func (s *MappingService) CreateMapping(ctx context.Context, actor *domain.UserContext, in CreateMappingInput) (*domain.Mapping, error) {
	return s.createMapping(ctx, actor, in, domain.MappingMethodManual, 0)
}

func (s *MappingService) createMapping(ctx context.Context, actor *domain.UserContext, in CreateMappingInput, method domain.MappingMethod, confidence float64) (*domain.Mapping, error) {
	if in.CommitID == "" || in.TimesheetEntryID == "" {
		return nil, port.Validf("commit_id and timesheet_entry_id are required")
	}

	commit, err := s.commits.GetCommit(ctx, actor.CompanyID, in.CommitID)
	if err != nil {
		return nil, err
	}
	entry, err := s.timesheets.GetTimesheetEntry(ctx, in.TimesheetEntryID)
	if err != nil {
		return nil, err
	}
	// Company mismatch is a data integrity failure, reported as such no
	// matter who the actor is.
	if entry.CompanyID != commit.CompanyID {
		return nil, port.Integrityf("commit and timesheet entry belong to different companies")
	}
	if err := s.authz.Authorize(actor, port.ActionWriteTimesheet, entry); err != nil {
		return nil, err
	}
	if !entry.Active {
		return nil, port.Validf("timesheet entry %s is inactive", entry.ID)
	}

	if gap := absDuration(commit.CommitDate.Sub(entry.Date)); gap > s.dateWindow {
		return nil, port.Validf("commit date %s and timesheet date %s are more than %d days apart",
			commit.CommitDate.Format("2006-01-02"), entry.Date.Format("2006-01-02"),
			int(s.dateWindow.Hours()/24))
	}

	mapping := &domain.Mapping{
		CommitID:         commit.ID,
		TimesheetEntryID: entry.ID,
		MappedBy:         actor.UserID,
		Method:           method,
		Description:      in.Description,
		ConfidenceScore:  confidence,
		CompanyID:        actor.CompanyID,
	}
	created, err := s.mappings.CreateMapping(ctx, mapping)
	if err != nil {
		return nil, err
	}
	slog.Info("mapping created",
		"mapping_id", created.ID, "commit", commit.ShortHash,
		"entry", entry.ID, "method", method, "by", actor.UserID)
	return created, nil
}

// CreateBulkMappings links many commits to one timesheet entry. Each commit
// is processed independently: already-mapped commits are skipped, other
// failures are recorded per commit, and the batch always completes.
func (s *MappingService) CreateBulkMappings(ctx context.Context, actor *domain.UserContext, commitIDs []string, timesheetEntryID, description string) (*domain.BulkMappingResult, error) {
	if len(commitIDs) == 0 {
		return nil, port.Validf("commit_ids must not be empty")
	}

	result := &domain.BulkMappingResult{}
	for _, commitID := range commitIDs {
		hash := ""
		if commit, err := s.commits.GetCommit(ctx, actor.CompanyID, commitID); err == nil {
			hash = commit.ShortHash
			if commit.IsMapped {
				result.SkippedCount++
				result.Skipped = append(result.Skipped, domain.BulkMappingSkip{
					CommitID:   commitID,
					CommitHash: hash,
					Reason:     "commit is already mapped",
				})
				continue
			}
		}

		created, err := s.createMapping(ctx, actor, CreateMappingInput{
			CommitID:         commitID,
			TimesheetEntryID: timesheetEntryID,
			Description:      description,
		}, domain.MappingMethodBulk, 0)
		if err != nil {
			// A concurrent mapper may have won the race since the check above.
			if errors.Is(err, port.ErrConflict) {
				result.SkippedCount++
				result.Skipped = append(result.Skipped, domain.BulkMappingSkip{
					CommitID:   commitID,
					CommitHash: hash,
					Reason:     "commit is already mapped",
				})
				continue
			}
			result.FailedCount++
			result.Failed = append(result.Failed, domain.BulkMappingFailure{
				CommitID:   commitID,
				CommitHash: hash,
				Error:      err.Error(),
			})
			continue
		}
		result.CreatedCount++
		result.Created = append(result.Created, domain.BulkMappingDetail{
			MappingID:  created.ID,
			CommitID:   commitID,
			CommitHash: created.CommitHash,
		})
	}

	slog.Info("bulk mapping complete",
		"entry", timesheetEntryID, "created", result.CreatedCount,
		"skipped", result.SkippedCount, "failed", result.FailedCount, "by", actor.UserID)
	return result, nil
}

// RemoveMapping deletes a mapping. Only the original mapper or an
// administrator may remove it.
func (s *MappingService) RemoveMapping(ctx context.Context, actor *domain.UserContext, mappingID string) error {
	mapping, err := s.mappings.GetMapping(ctx, actor.CompanyID, mappingID)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(actor, port.ActionRemoveMapping, mapping); err != nil {
		return err
	}
	if err := s.mappings.DeleteMapping(ctx, mappingID); err != nil {
		return err
	}
	slog.Info("mapping removed", "mapping_id", mappingID, "commit", mapping.CommitHash, "by", actor.UserID)
	return nil
}

// ValidateMapping recomputes a mapping's validity against the current state
// of its commit and timesheet entry.
func (s *MappingService) ValidateMapping(ctx context.Context, actor *domain.UserContext, mappingID string) (*domain.MappingValidation, error) {
	mapping, err := s.mappings.GetMapping(ctx, actor.CompanyID, mappingID)
	if err != nil {
		return nil, err
	}

	v := &domain.MappingValidation{MappingID: mapping.ID, IsValid: true}
	fail := func(format string, args ...any) {
		v.IsValid = false
		v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
	}

	commit, err := s.commits.GetCommit(ctx, actor.CompanyID, mapping.CommitID)
	if err != nil {
		fail("commit %s no longer exists", mapping.CommitHash)
	}

	entry, err := s.timesheets.GetTimesheetEntry(ctx, mapping.TimesheetEntryID)
	switch {
	case err != nil:
		fail("timesheet entry %s no longer exists", mapping.TimesheetEntryID)
	case !entry.Active:
		fail("timesheet entry %s is inactive", entry.ID)
	default:
		if commit != nil && entry.CompanyID != commit.CompanyID {
			fail("commit and timesheet entry belong to different companies")
		}
		if err := s.authz.Authorize(actor, port.ActionReadTimesheet, entry); err != nil {
			fail("no read access to timesheet entry %s", entry.ID)
		}
	}
	return v, nil
}

// ListMappings returns the actor's company mappings matching the filter.
func (s *MappingService) ListMappings(ctx context.Context, actor *domain.UserContext, f domain.MappingStatsFilter) ([]domain.Mapping, error) {
	return s.mappings.ListMappings(ctx, actor.CompanyID, f)
}

// GetMappingStatistics aggregates mapping activity for the actor's company.
func (s *MappingService) GetMappingStatistics(ctx context.Context, actor *domain.UserContext, f domain.MappingStatsFilter) (*domain.MappingStatistics, error) {
	return s.mappings.GetMappingStatistics(ctx, actor.CompanyID, f)
}

// ListTimesheetEntries returns the actor's company timesheet entries.
func (s *MappingService) ListTimesheetEntries(ctx context.Context, actor *domain.UserContext, from, to *time.Time) ([]domain.TimesheetEntry, error) {
	if err := s.authz.Authorize(actor, port.ActionReadTimesheet, nil); err != nil {
		return nil, err
	}
	return s.timesheets.ListTimesheetEntries(ctx, actor.CompanyID, from, to)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// normalizeWords lowercases and tokenizes on whitespace.
func normalizeWords(s string) map[string]struct{} {
	words := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		words[w] = struct{}{}
	}
	return words
}
