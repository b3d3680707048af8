package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nfrund/accounts/internal/domain"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

var _ domain.AccountRepository = (*MemoryAccountStore)(nil)

// MemoryAccountStore is an in-process domain.AccountRepository. It enforces
// the same unique-email rule as the SurrealDB index, atomically, and hands
// out copies so callers never share state with the store.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account // keyed by raw record key
	byEmail  map[string]string
}

// NewMemoryAccountStore creates an empty store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		accounts: make(map[string]*domain.Account),
		byEmail:  make(map[string]string),
	}
}

func (s *MemoryAccountStore) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	rid, err := ParseAccountID(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAccount(s.accounts[recordKey(rid)]), nil
}

func (s *MemoryAccountStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, nil
	}
	return cloneAccount(s.accounts[id]), nil
}

func (s *MemoryAccountStore) FindBySessionToken(ctx context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.SessionToken != nil && *a.SessionToken == token {
			return cloneAccount(a), nil
		}
	}
	return nil, nil
}

func (s *MemoryAccountStore) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	if account == nil {
		return nil, NewDBError(ErrInvalidInput, "account to create cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[account.Email]; taken {
		return nil, domain.ErrEmailTaken
	}

	stored := cloneAccount(account)
	rid := surrealmodels.NewRecordID(domain.AccountTable, uuid.NewString())
	stored.ID = &rid
	now := &surrealmodels.CustomDateTime{Time: time.Now().UTC()}
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.accounts[recordKey(&rid)] = stored
	s.byEmail[stored.Email] = recordKey(&rid)
	return cloneAccount(stored), nil
}

func (s *MemoryAccountStore) Save(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	if account == nil || account.ID == nil {
		return nil, NewDBError(ErrInvalidInput, "account and account ID are required for save")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := recordKey(account.ID)
	current, ok := s.accounts[id]
	if !ok {
		return nil, NewDBError(ErrNotFound, "account not found")
	}
	if owner, taken := s.byEmail[account.Email]; taken && owner != id {
		return nil, domain.ErrEmailTaken
	}

	stored := cloneAccount(account)
	stored.CreatedAt = current.CreatedAt
	stored.UpdatedAt = &surrealmodels.CustomDateTime{Time: time.Now().UTC()}

	delete(s.byEmail, current.Email)
	s.byEmail[stored.Email] = id
	s.accounts[id] = stored
	return cloneAccount(stored), nil
}

func (s *MemoryAccountStore) UpdateFields(ctx context.Context, id string, fields map[string]any) (*domain.Account, error) {
	rid, err := ParseAccountID(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(rid)
	current, ok := s.accounts[key]
	if !ok {
		return nil, nil
	}

	next := cloneAccount(current)
	for k, v := range fields {
		str, isString := v.(string)
		if !isString {
			return nil, NewDBError(ErrInvalidInput, "unsupported value for field "+k)
		}
		switch k {
		case "email":
			next.Email = str
		case "name":
			next.Name = &str
		case "avatarUrl":
			next.AvatarURL = &str
		default:
			return nil, NewDBError(ErrInvalidInput, "field "+k+" cannot be updated")
		}
	}

	if next.Email != current.Email {
		if _, taken := s.byEmail[next.Email]; taken {
			return nil, domain.ErrEmailTaken
		}
		delete(s.byEmail, current.Email)
		s.byEmail[next.Email] = key
	}
	next.UpdatedAt = &surrealmodels.CustomDateTime{Time: time.Now().UTC()}
	s.accounts[key] = next
	return cloneAccount(next), nil
}

// Len returns the number of stored accounts.
func (s *MemoryAccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

func recordKey(rid *surrealmodels.RecordID) string {
	return fmt.Sprint(rid.ID)
}

func cloneAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	cp := *a
	if a.ID != nil {
		id := *a.ID
		cp.ID = &id
	}
	cp.Name = cloneString(a.Name)
	cp.SessionToken = cloneString(a.SessionToken)
	cp.ResetToken = cloneString(a.ResetToken)
	cp.AvatarURL = cloneString(a.AvatarURL)
	cp.TokenExpiry = cloneTime(a.TokenExpiry)
	cp.ResetTokenExpiry = cloneTime(a.ResetTokenExpiry)
	cp.CreatedAt = cloneTime(a.CreatedAt)
	cp.UpdatedAt = cloneTime(a.UpdatedAt)
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *surrealmodels.CustomDateTime) *surrealmodels.CustomDateTime {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
