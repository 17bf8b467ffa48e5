package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

// Scoring weights. The additive score is clamped at 1.0.
const (
	weightProject  = 0.40
	weightAuthor   = 0.30
	weightSameDay  = 0.20
	weightOneDay   = 0.15
	weightThreeDay = 0.10
	weightWeek     = 0.05
	weightPerWord  = 0.02
	weightWordsCap = 0.10

	suggestionCutoff = 0.30
	candidateWindow  = 7 * 24 * time.Hour
)

// SuggestionService scores commit to timesheet pairings and drives
// automatic mapping.
type SuggestionService struct {
	commits    port.CommitStore
	repos      port.RepositoryStore
	timesheets port.TimesheetStore
	mapper     *MappingService
	authz      port.Authorizer
	threshold  float64
}

// NewSuggestionService creates a suggestion service. threshold is the
// minimum confidence for automatic mapping.
func NewSuggestionService(commits port.CommitStore, repos port.RepositoryStore, timesheets port.TimesheetStore, mapper *MappingService, authz port.Authorizer, threshold float64) *SuggestionService {
	if threshold <= 0 {
		threshold = 0.8
	}
	return &SuggestionService{
		commits:    commits,
		repos:      repos,
		timesheets: timesheets,
		mapper:     mapper,
		authz:      authz,
		threshold:  threshold,
	}
}

// Score rates how well a timesheet entry matches a commit, in [0, 1].
// repoProjectID is the project linked to the commit's repository, empty
// when none is linked.
func Score(commit *domain.Commit, entry *domain.TimesheetEntry, repoProjectID string) (float64, []string) {
	var score float64
	var reasons []string

	if repoProjectID != "" && repoProjectID == entry.ProjectID {
		score += weightProject
		reasons = append(reasons, "same project")
	}

	if commit.AuthorEmail != "" && strings.EqualFold(commit.AuthorEmail, entry.UserEmail) {
		score += weightAuthor
		reasons = append(reasons, "author matches timesheet user")
	}

	switch days := calendarDaysApart(commit.CommitDate, entry.Date); {
	case days == 0:
		score += weightSameDay
		reasons = append(reasons, "same day")
	case days == 1:
		score += weightOneDay
		reasons = append(reasons, "within one day")
	case days <= 3:
		score += weightThreeDay
		reasons = append(reasons, "within three days")
	case days <= 7:
		score += weightWeek
		reasons = append(reasons, "within one week")
	}

	if overlap := wordOverlap(commit.Message, entry.Name); overlap > 0 {
		score += min(weightWordsCap, weightPerWord*float64(overlap))
		reasons = append(reasons, fmt.Sprintf("%d shared keywords", overlap))
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, reasons
}

// calendarDaysApart counts whole UTC calendar days between two instants, so
// a late commit next to an entry dated the previous midnight is one day off,
// not two.
func calendarDaysApart(a, b time.Time) int {
	au, bu := a.UTC(), b.UTC()
	ad := time.Date(au.Year(), au.Month(), au.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(bu.Year(), bu.Month(), bu.Day(), 0, 0, 0, 0, time.UTC)
	days := int(ad.Sub(bd) / (24 * time.Hour))
	if days < 0 {
		return -days
	}
	return days
}

func wordOverlap(a, b string) int {
	wordsA := normalizeWords(a)
	wordsB := normalizeWords(b)
	n := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			n++
		}
	}
	return n
}

// confidenceTier labels a score for display.
func confidenceTier(score float64) string {
	switch {
	case score >= 0.8:
		return "high confidence"
	case score >= 0.5:
		return "medium confidence"
	}
	return "low confidence"
}

// SuggestForCommit returns ranked timesheet suggestions for one commit.
// Candidates are active entries with a project set, in the commit's
// company, restricted to the repository's project when one is linked, and
// dated within a week of the commit.
func (s *SuggestionService) SuggestForCommit(ctx context.Context, actor *domain.UserContext, commitID string, limit int) ([]domain.Suggestion, error) {
	if err := s.authz.Authorize(actor, port.ActionReadTimesheet, nil); err != nil {
		return nil, err
	}
	commit, err := s.commits.GetCommit(ctx, actor.CompanyID, commitID)
	if err != nil {
		return nil, err
	}
	return s.suggestForCommit(ctx, actor, commit, limit)
}

func (s *SuggestionService) suggestForCommit(ctx context.Context, actor *domain.UserContext, commit *domain.Commit, limit int) ([]domain.Suggestion, error) {
	if limit <= 0 {
		limit = 5
	}

	repoProjectID := ""
	if repo, err := s.repos.GetRepository(ctx, actor.CompanyID, commit.RepositoryID); err == nil {
		repoProjectID = repo.ProjectID
	}

	from := commit.CommitDate.Add(-candidateWindow)
	to := commit.CommitDate.Add(candidateWindow)
	candidates, err := s.timesheets.FindCandidateEntries(ctx, actor.CompanyID, repoProjectID, from, to)
	if err != nil {
		return nil, err
	}

	var suggestions []domain.Suggestion
	for i := range candidates {
		entry := &candidates[i]
		score, reasons := Score(commit, entry, repoProjectID)
		if score <= suggestionCutoff {
			continue
		}
		suggestions = append(suggestions, domain.Suggestion{
			CommitID:         commit.ID,
			CommitHash:       commit.ShortHash,
			CommitMessage:    commit.ShortMessage,
			TimesheetEntryID: entry.ID,
			TimesheetName:    entry.Name,
			ProjectName:      entry.ProjectName,
			TaskName:         entry.TaskName,
			UserName:         entry.UserName,
			Score:            score,
			Reasons:          append(reasons, confidenceTier(score)),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// SuggestForTimesheet returns ranked commit suggestions for one timesheet
// entry, scanning the company's unmapped commits.
func (s *SuggestionService) SuggestForTimesheet(ctx context.Context, actor *domain.UserContext, entryID string, limit int) ([]domain.Suggestion, error) {
	entry, err := s.timesheets.GetTimesheetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(actor, port.ActionReadTimesheet, entry); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	from := entry.Date.Add(-candidateWindow)
	to := entry.Date.Add(candidateWindow)
	commits, err := s.commits.SearchCommits(ctx, actor.CompanyID, "", domain.CommitFilter{
		MappedStatus: "unmapped",
		DateFrom:     &from,
		DateTo:       &to,
	})
	if err != nil {
		return nil, err
	}

	projectByRepo := map[string]string{}
	var suggestions []domain.Suggestion
	for i := range commits {
		commit := &commits[i]
		repoProjectID, ok := projectByRepo[commit.RepositoryID]
		if !ok {
			if repo, err := s.repos.GetRepository(ctx, actor.CompanyID, commit.RepositoryID); err == nil {
				repoProjectID = repo.ProjectID
			}
			projectByRepo[commit.RepositoryID] = repoProjectID
		}

		score, reasons := Score(commit, entry, repoProjectID)
		if score <= suggestionCutoff {
			continue
		}
		suggestions = append(suggestions, domain.Suggestion{
			CommitID:         commit.ID,
			CommitHash:       commit.ShortHash,
			CommitMessage:    commit.ShortMessage,
			TimesheetEntryID: entry.ID,
			TimesheetName:    entry.Name,
			ProjectName:      entry.ProjectName,
			TaskName:         entry.TaskName,
			UserName:         entry.UserName,
			Score:            score,
			Reasons:          append(reasons, confidenceTier(score)),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// SuggestMappings builds per-commit suggestion lists. With no commit IDs it
// covers every unmapped commit in the company.
func (s *SuggestionService) SuggestMappings(ctx context.Context, actor *domain.UserContext, commitIDs []string, limit int) (map[string][]domain.Suggestion, error) {
	if err := s.authz.Authorize(actor, port.ActionReadTimesheet, nil); err != nil {
		return nil, err
	}

	var commits []domain.Commit
	if len(commitIDs) > 0 {
		for _, id := range commitIDs {
			commit, err := s.commits.GetCommit(ctx, actor.CompanyID, id)
			if err != nil {
				slog.Warn("suggestion target missing", "commit_id", id, "error", err)
				continue
			}
			commits = append(commits, *commit)
		}
	} else {
		var err error
		commits, err = s.commits.ListUnmappedCommits(ctx, actor.CompanyID, "")
		if err != nil {
			return nil, err
		}
	}

	result := make(map[string][]domain.Suggestion, len(commits))
	for i := range commits {
		suggestions, err := s.suggestForCommit(ctx, actor, &commits[i], limit)
		if err != nil {
			slog.Warn("suggestion scoring failed", "commit_id", commits[i].ID, "error", err)
			continue
		}
		if len(suggestions) > 0 {
			result[commits[i].ID] = suggestions
		}
	}
	return result, nil
}

// AutoMapResult reports one automatic mapping pass.
type AutoMapResult struct {
	Considered int                        `json:"considered"`
	Created    int                        `json:"created"`
	Failed     int                        `json:"failed"`
	Mappings   []domain.BulkMappingDetail `json:"mappings"`
}

// AutoMapCommits maps every unmapped commit whose top suggestion scores at
// or above the confidence threshold, with method=automatic. Commits below
// the threshold are left untouched.
func (s *SuggestionService) AutoMapCommits(ctx context.Context, actor *domain.UserContext, repositoryID string) (*AutoMapResult, error) {
	if err := s.authz.Authorize(actor, port.ActionCreateMapping, nil); err != nil {
		return nil, err
	}

	commits, err := s.commits.ListUnmappedCommits(ctx, actor.CompanyID, repositoryID)
	if err != nil {
		return nil, err
	}

	result := &AutoMapResult{Considered: len(commits)}
	for i := range commits {
		commit := &commits[i]
		suggestions, err := s.suggestForCommit(ctx, actor, commit, 1)
		if err != nil || len(suggestions) == 0 {
			continue
		}
		top := suggestions[0]
		if top.Score < s.threshold {
			continue
		}

		mapping, err := s.mapper.createMapping(ctx, actor, CreateMappingInput{
			CommitID:         commit.ID,
			TimesheetEntryID: top.TimesheetEntryID,
			Description:      fmt.Sprintf("Auto-mapped (confidence: %.2f)", top.Score),
		}, domain.MappingMethodAutomatic, top.Score)
		if err != nil {
			slog.Warn("auto-map failed", "commit_id", commit.ID, "error", err)
			result.Failed++
			continue
		}
		result.Created++
		result.Mappings = append(result.Mappings, domain.BulkMappingDetail{
			MappingID:  mapping.ID,
			CommitID:   commit.ID,
			CommitHash: commit.ShortHash,
		})
	}

	slog.Info("auto-map complete",
		"repo_id", repositoryID, "considered", result.Considered,
		"created", result.Created, "failed", result.Failed, "by", actor.UserID)
	return result, nil
}
