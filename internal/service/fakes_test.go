package service

import (
	"context"
	"fmt"
	"time"

	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

// In-memory stores backing the service tests. They implement the same
// tenant scoping rules as the SQL store.

type fakeRepoStore struct {
	repos    map[string]*domain.Repository
	lastSync map[string]time.Time
}

func newFakeRepoStore(repos ...*domain.Repository) *fakeRepoStore {
	s := &fakeRepoStore{repos: map[string]*domain.Repository{}, lastSync: map[string]time.Time{}}
	for _, r := range repos {
		s.repos[r.ID] = r
	}
	return s
}

func (s *fakeRepoStore) CreateRepository(_ context.Context, r *domain.Repository) (*domain.Repository, error) {
	if r.ID == "" {
		r.ID = fmt.Sprintf("repo-%d", len(s.repos)+1)
	}
	s.repos[r.ID] = r
	return r, nil
}

func (s *fakeRepoStore) GetRepository(_ context.Context, companyID, id string) (*domain.Repository, error) {
	r, ok := s.repos[id]
	if !ok || r.CompanyID != companyID {
		return nil, port.NotFoundf("repository %s not found", id)
	}
	// A fresh copy per call, like a row scan.
	out := *r
	return &out, nil
}

func (s *fakeRepoStore) ListRepositories(_ context.Context, companyID string) ([]domain.Repository, error) {
	var out []domain.Repository
	for _, r := range s.repos {
		if r.CompanyID == companyID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeRepoStore) UpdateRepository(_ context.Context, r *domain.Repository) error {
	existing, ok := s.repos[r.ID]
	if !ok || existing.CompanyID != r.CompanyID {
		return port.NotFoundf("repository %s not found", r.ID)
	}
	s.repos[r.ID] = r
	return nil
}

func (s *fakeRepoStore) UpdateConnection(_ context.Context, id, status, connError, defaultBranch string) error {
	r, ok := s.repos[id]
	if !ok {
		return port.NotFoundf("repository %s not found", id)
	}
	r.ConnectionStatus = status
	r.ConnectionError = connError
	if defaultBranch != "" {
		r.DefaultBranch = defaultBranch
	}
	return nil
}

func (s *fakeRepoStore) SetLastSyncDate(_ context.Context, id string, at time.Time) error {
	s.lastSync[id] = at
	return nil
}

func (s *fakeRepoStore) DeleteRepository(_ context.Context, companyID, id string) error {
	r, ok := s.repos[id]
	if !ok || r.CompanyID != companyID {
		return port.NotFoundf("repository %s not found", id)
	}
	delete(s.repos, id)
	return nil
}

func (s *fakeRepoStore) GetRepositoryStats(_ context.Context, id string) (*domain.RepositoryStats, error) {
	return &domain.RepositoryStats{}, nil
}

type fakeCommitStore struct {
	commits map[string]*domain.Commit
	nextID  int

	upsertErr error
}

func newFakeCommitStore(commits ...*domain.Commit) *fakeCommitStore {
	s := &fakeCommitStore{commits: map[string]*domain.Commit{}}
	for _, c := range commits {
		s.commits[c.ID] = c
	}
	return s
}

func (s *fakeCommitStore) UpsertCommit(_ context.Context, c *domain.Commit) (bool, error) {
	if s.upsertErr != nil {
		return false, s.upsertErr
	}
	for _, existing := range s.commits {
		if existing.Hash == c.Hash && existing.RepositoryID == c.RepositoryID {
			c.ID = existing.ID
			c.IsMapped = existing.IsMapped
			c.MappedBy = existing.MappedBy
			c.MappingDate = existing.MappingDate
			s.commits[c.ID] = c
			return false, nil
		}
	}
	s.nextID++
	c.ID = fmt.Sprintf("commit-%d", s.nextID)
	s.commits[c.ID] = c
	return true, nil
}

func (s *fakeCommitStore) GetCommit(_ context.Context, companyID, id string) (*domain.Commit, error) {
	c, ok := s.commits[id]
	if !ok || c.CompanyID != companyID {
		return nil, port.NotFoundf("commit %s not found", id)
	}
	return c, nil
}

func (s *fakeCommitStore) SearchCommits(_ context.Context, companyID, repositoryID string, f domain.CommitFilter) ([]domain.Commit, error) {
	var out []domain.Commit
	for _, c := range s.commits {
		if c.CompanyID != companyID {
			continue
		}
		if repositoryID != "" && c.RepositoryID != repositoryID {
			continue
		}
		if f.MappedStatus == "mapped" && !c.IsMapped {
			continue
		}
		if f.MappedStatus == "unmapped" && c.IsMapped {
			continue
		}
		if f.DateFrom != nil && c.CommitDate.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && c.CommitDate.After(*f.DateTo) {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (s *fakeCommitStore) ListUnmappedCommits(ctx context.Context, companyID, repositoryID string) ([]domain.Commit, error) {
	return s.SearchCommits(ctx, companyID, repositoryID, domain.CommitFilter{MappedStatus: "unmapped"})
}

func (s *fakeCommitStore) GetCommitStatistics(_ context.Context, companyID, repositoryID string, from, to *time.Time) (*domain.CommitStatistics, error) {
	return &domain.CommitStatistics{}, nil
}

type fakeMappingStore struct {
	mappings map[string]*domain.Mapping
	commits  *fakeCommitStore
	entries  *fakeTimesheetStore
	nextID   int
}

func newFakeMappingStore(commits *fakeCommitStore, entries *fakeTimesheetStore) *fakeMappingStore {
	return &fakeMappingStore{mappings: map[string]*domain.Mapping{}, commits: commits, entries: entries}
}

func (s *fakeMappingStore) CreateMapping(_ context.Context, m *domain.Mapping) (*domain.Mapping, error) {
	for _, existing := range s.mappings {
		if existing.CommitID == m.CommitID {
			name := existing.TimesheetEntryID
			if e, ok := s.entries.entries[existing.TimesheetEntryID]; ok && e.Name != "" {
				name = e.Name
			}
			return nil, port.Conflictf("commit is already mapped to timesheet entry %q", name)
		}
	}
	s.nextID++
	now := time.Now().UTC()
	stored := *m
	stored.ID = fmt.Sprintf("mapping-%d", s.nextID)
	stored.MappingDate = now
	if c, ok := s.commits.commits[m.CommitID]; ok {
		c.IsMapped = true
		c.MappedBy = m.MappedBy
		c.MappingDate = &now
		stored.CommitHash = c.Hash
		stored.RepositoryID = c.RepositoryID
	}
	s.mappings[stored.ID] = &stored
	return &stored, nil
}

func (s *fakeMappingStore) GetMapping(_ context.Context, companyID, id string) (*domain.Mapping, error) {
	m, ok := s.mappings[id]
	if !ok || m.CompanyID != companyID {
		return nil, port.NotFoundf("mapping %s not found", id)
	}
	return m, nil
}

func (s *fakeMappingStore) GetMappingByCommit(_ context.Context, commitID string) (*domain.Mapping, error) {
	for _, m := range s.mappings {
		if m.CommitID == commitID {
			return m, nil
		}
	}
	return nil, port.NotFoundf("no mapping for commit %s", commitID)
}

func (s *fakeMappingStore) DeleteMapping(_ context.Context, id string) error {
	m, ok := s.mappings[id]
	if !ok {
		return port.NotFoundf("mapping %s not found", id)
	}
	delete(s.mappings, id)
	if c, ok := s.commits.commits[m.CommitID]; ok {
		c.IsMapped = false
		c.MappedBy = ""
		c.MappingDate = nil
	}
	return nil
}

func (s *fakeMappingStore) ListMappings(_ context.Context, companyID string, f domain.MappingStatsFilter) ([]domain.Mapping, error) {
	var out []domain.Mapping
	for _, m := range s.mappings {
		if m.CompanyID == companyID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *fakeMappingStore) GetMappingStatistics(_ context.Context, companyID string, f domain.MappingStatsFilter) (*domain.MappingStatistics, error) {
	stats := &domain.MappingStatistics{Methods: map[domain.MappingMethod]int{}}
	for _, m := range s.mappings {
		if m.CompanyID == companyID {
			stats.TotalMappings++
			stats.Methods[m.Method]++
		}
	}
	return stats, nil
}

type fakeTimesheetStore struct {
	entries map[string]*domain.TimesheetEntry
}

func newFakeTimesheetStore(entries ...*domain.TimesheetEntry) *fakeTimesheetStore {
	s := &fakeTimesheetStore{entries: map[string]*domain.TimesheetEntry{}}
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return s
}

func (s *fakeTimesheetStore) GetTimesheetEntry(_ context.Context, id string) (*domain.TimesheetEntry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, port.NotFoundf("timesheet entry %s not found", id)
	}
	return e, nil
}

func (s *fakeTimesheetStore) FindCandidateEntries(_ context.Context, companyID, projectID string, from, to time.Time) ([]domain.TimesheetEntry, error) {
	var out []domain.TimesheetEntry
	for _, e := range s.entries {
		if e.CompanyID != companyID || !e.Active || e.ProjectID == "" {
			continue
		}
		if projectID != "" && e.ProjectID != projectID {
			continue
		}
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *fakeTimesheetStore) ListTimesheetEntries(_ context.Context, companyID string, from, to *time.Time) ([]domain.TimesheetEntry, error) {
	var out []domain.TimesheetEntry
	for _, e := range s.entries {
		if e.CompanyID == companyID {
			out = append(out, *e)
		}
	}
	return out, nil
}

// fakePlatformClient serves canned commits and errors for sync tests.
type fakePlatformClient struct {
	commits  []port.RemoteCommit
	fetchErr error
	connErr  error

	lastQuery port.CommitQuery
}

func (c *fakePlatformClient) TestConnection(_ context.Context, repoURL, token string) (*port.RepositoryInfo, error) {
	if c.connErr != nil {
		return nil, c.connErr
	}
	return &port.RepositoryInfo{FullName: "acme/widget", DefaultBranch: "develop", Private: true}, nil
}

func (c *fakePlatformClient) ListBranches(_ context.Context, repoURL, token string) ([]port.Branch, error) {
	return []port.Branch{{Name: "main"}}, nil
}

func (c *fakePlatformClient) FetchCommits(_ context.Context, repoURL, token string, q port.CommitQuery) ([]port.RemoteCommit, error) {
	c.lastQuery = q
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	return c.commits, nil
}

func (c *fakePlatformClient) GetCommitDiff(_ context.Context, repoURL, sha, token string) (*port.CommitDiff, error) {
	return &port.CommitDiff{}, nil
}

func (c *fakePlatformClient) SearchCommits(_ context.Context, repoURL, query, token string, limit int) ([]port.RemoteCommit, error) {
	return c.commits, nil
}

func (c *fakePlatformClient) GetRepositoryInfo(_ context.Context, repoURL, token string) (*port.RepositoryInfo, error) {
	return &port.RepositoryInfo{FullName: "acme/widget"}, nil
}

type fakeResolver struct {
	client *fakePlatformClient
}

func (r *fakeResolver) ClientFor(repoURL string) (port.PlatformClient, error) {
	return r.client, nil
}
