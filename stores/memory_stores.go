package stores

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carebridge/authz"
)

// MemoryAssignmentStore keeps template assignments in memory for tests/demo.
type MemoryAssignmentStore struct {
	mu     sync.RWMutex
	grants map[string]map[string]bool // resourceID -> userID -> true
}

func NewMemoryAssignmentStore() *MemoryAssignmentStore {
	return &MemoryAssignmentStore{grants: make(map[string]map[string]bool)}
}

func (s *MemoryAssignmentStore) Assign(ctx context.Context, resourceID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grants[resourceID] == nil {
		s.grants[resourceID] = make(map[string]bool)
	}
	s.grants[resourceID][userID] = true
	return nil
}

func (s *MemoryAssignmentStore) Unassign(ctx context.Context, resourceID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants[resourceID], userID)
	return nil
}

func (s *MemoryAssignmentStore) Exists(ctx context.Context, resourceID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grants[resourceID][userID], nil
}

// MemoryShareStore keeps resource shares in memory for tests/demo.
type MemoryShareStore struct {
	mu     sync.RWMutex
	shares map[string]map[string]bool // resourceID -> userID -> true
}

func NewMemoryShareStore() *MemoryShareStore {
	return &MemoryShareStore{shares: make(map[string]map[string]bool)}
}

func (s *MemoryShareStore) Share(ctx context.Context, resourceID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shares[resourceID] == nil {
		s.shares[resourceID] = make(map[string]bool)
	}
	s.shares[resourceID][userID] = true
	return nil
}

func (s *MemoryShareStore) Unshare(ctx context.Context, resourceID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shares[resourceID], userID)
	return nil
}

func (s *MemoryShareStore) Exists(ctx context.Context, resourceID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shares[resourceID][userID], nil
}

// MemoryResourceStore holds resources in memory. ListVisible interprets the
// gate's filter row by row, which makes it the reference implementation the
// SQL store is tested against.
type MemoryResourceStore struct {
	mu        sync.RWMutex
	resources map[string]*authz.Resource
	gate      *authz.VisibilityGate
}

func NewMemoryResourceStore(gate *authz.VisibilityGate) *MemoryResourceStore {
	return &MemoryResourceStore{resources: make(map[string]*authz.Resource), gate: gate}
}

func (s *MemoryResourceStore) Put(ctx context.Context, res *authz.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[res.ID] = res
	return nil
}

func (s *MemoryResourceStore) Get(ctx context.Context, id string) (*authz.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.resources[id]
	if !ok {
		return nil, fmt.Errorf("resource not found: %s", id)
	}
	return res, nil
}

func (s *MemoryResourceStore) ListVisible(ctx context.Context, viewer authz.Viewer) ([]*authz.Resource, error) {
	s.mu.RLock()
	snapshot := make([]*authz.Resource, 0, len(s.resources))
	for _, res := range s.resources {
		snapshot = append(snapshot, res)
	}
	s.mu.RUnlock()

	filter := s.gate.FilterFor(viewer)
	out := make([]*authz.Resource, 0, len(snapshot))
	for _, res := range snapshot {
		ok, err := s.gate.Match(ctx, filter, res)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MemoryUserDirectory maps user IDs to their roles for tests/demo.
type MemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[string]*authz.UserInfo
}

func NewMemoryUserDirectory() *MemoryUserDirectory {
	return &MemoryUserDirectory{users: make(map[string]*authz.UserInfo)}
}

func (s *MemoryUserDirectory) Put(userID string, info *authz.UserInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = info
}

func (s *MemoryUserDirectory) Lookup(ctx context.Context, userID string) (*authz.UserInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %s", userID)
	}
	return info, nil
}

// MemoryAuditStore collects decision audit entries in memory.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []*authz.AuditEntry
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{entries: make([]*authz.AuditEntry, 0)}
}

func (s *MemoryAuditStore) LogDecision(ctx context.Context, entry *authz.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *entry
	s.entries = append(s.entries, &dup)
	return nil
}

func (s *MemoryAuditStore) GetDecisionLog(ctx context.Context, filter authz.AuditFilter) ([]*authz.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*authz.AuditEntry, 0)
	for _, entry := range s.entries {
		if filter.UserID != "" && entry.UserID != filter.UserID {
			continue
		}
		if filter.ResourceType != "" && entry.ResourceType != filter.ResourceType {
			continue
		}
		if !filter.StartTime.IsZero() && entry.Timestamp.Before(filter.StartTime) {
			continue
		}
		if !filter.EndTime.IsZero() && entry.Timestamp.After(filter.EndTime) {
			continue
		}
		result = append(result, entry)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

// WaitFor polls until the async audit worker has delivered at least n
// entries, or the timeout passes. Test helper.
func (s *MemoryAuditStore) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s.mu.RLock()
		count := len(s.entries)
		s.mu.RUnlock()
		if count >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
