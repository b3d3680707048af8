package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nfrund/accounts/internal/domain"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

var _ domain.AccountRepository = (*AccountStore)(nil)

// AccountStore implements domain.AccountRepository on SurrealDB.
type AccountStore struct {
	conn DBConnection
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(conn DBConnection) *AccountStore {
	return &AccountStore{conn: conn}
}

// FindByID returns the account with the given record ID.
func (s *AccountStore) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	rid, err := ParseAccountID(id)
	if err != nil {
		return nil, err
	}
	return s.queryOne(ctx, "SELECT * FROM $id", map[string]any{"id": rid})
}

// FindByEmail queries for a single account by its email address.
func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.queryOne(ctx, "SELECT * FROM account WHERE email = $email", map[string]any{"email": email})
}

// FindBySessionToken queries for the account holding the given session token.
func (s *AccountStore) FindBySessionToken(ctx context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, nil
	}
	// "token" is reserved in SurrealQL parameters.
	return s.queryOne(ctx, "SELECT * FROM account WHERE sessionToken = $session_token",
		map[string]any{"session_token": token})
}

// Create inserts a new account. The UNIQUE index on email (see EnsureSchema)
// turns a concurrent duplicate into domain.ErrEmailTaken.
func (s *AccountStore) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	if account == nil {
		return nil, NewDBError(ErrInvalidInput, "account to create cannot be nil")
	}

	now := time.Now().UTC()
	account.CreatedAt = &surrealmodels.CustomDateTime{Time: now}
	account.UpdatedAt = &surrealmodels.CustomDateTime{Time: now}

	query := "CREATE account CONTENT $data"
	created, err := s.write(ctx, query, map[string]any{"data": accountDocument(account)})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, NewDBError(err, "create account failed").WithQuery(query)
	}
	if created == nil {
		return nil, NewDBError(ErrNotFound, "create account returned no record")
	}
	return created, nil
}

// Save replaces the stored document with account. Nil optional fields are
// removed from the document.
func (s *AccountStore) Save(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	if account == nil || account.ID == nil {
		return nil, NewDBError(ErrInvalidInput, "account and account ID are required for save")
	}

	account.UpdatedAt = &surrealmodels.CustomDateTime{Time: time.Now().UTC()}

	query := "UPDATE $id CONTENT $data"
	saved, err := s.write(ctx, query, map[string]any{"id": account.ID, "data": accountDocument(account)})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, NewDBError(err, "save account failed").WithQuery(query)
	}
	if saved == nil {
		return nil, NewDBError(ErrNotFound, "account not found")
	}
	return saved, nil
}

// UpdateFields merges fields into an existing account and returns the
// document after the update. The WHERE guard stops UPDATE from creating a
// record that does not exist yet.
func (s *AccountStore) UpdateFields(ctx context.Context, id string, fields map[string]any) (*domain.Account, error) {
	rid, err := ParseAccountID(id)
	if err != nil {
		return nil, err
	}

	data := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		data[k] = v
	}
	data["updatedAt"] = surrealmodels.CustomDateTime{Time: time.Now().UTC()}

	query := "UPDATE $id MERGE $data WHERE email != NONE RETURN AFTER"
	updated, err := s.write(ctx, query, map[string]any{"id": rid, "data": data})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, NewDBError(err, "update account failed").WithQuery(query)
	}
	return updated, nil
}

func (s *AccountStore) queryOne(ctx context.Context, query string, params map[string]any) (*domain.Account, error) {
	ctx, cancel := withTimeout(ctx, s.conn.GetDBQueryTimeout(), ContextKeyQueryTimeout)
	defer cancel()

	var account *domain.Account
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		account, err = QueryOne[domain.Account](ctx, db, query, params)
		return err
	})
	if err != nil {
		return nil, NewDBError(err, "account query failed").WithQuery(query)
	}
	return account, nil
}

func (s *AccountStore) write(ctx context.Context, query string, params map[string]any) (*domain.Account, error) {
	ctx, cancel := withTimeout(ctx, s.conn.GetDBExecuteTimeout(), ContextKeyExecuteTimeout)
	defer cancel()

	var account *domain.Account
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		account, err = QueryOne[domain.Account](ctx, db, query, params)
		return err
	})
	return account, err
}

// ParseAccountID accepts either "account:<key>" or a bare key and returns
// the corresponding record ID. The key may be in the escaped form
// RecordID.String produces ("account:⟨uuid⟩" or "account:`uuid`"), so
// ParseAccountID(a.IDString()) names the same record as a.ID.
func ParseAccountID(id string) (*surrealmodels.RecordID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, NewDBError(ErrInvalidID, "account ID cannot be empty")
	}
	key := id
	if table, rest, ok := strings.Cut(id, ":"); ok {
		if table != domain.AccountTable || rest == "" {
			return nil, NewDBError(ErrInvalidID, fmt.Sprintf("expected '%s:<key>', got '%s'", domain.AccountTable, id))
		}
		key = rest
	}
	key = unescapeRecordKey(key)
	if key == "" {
		return nil, NewDBError(ErrInvalidID, fmt.Sprintf("account ID '%s' has an empty key", id))
	}
	rid := surrealmodels.NewRecordID(domain.AccountTable, key)
	return &rid, nil
}

// unescapeRecordKey strips SurrealQL identifier escaping from a record key.
// Inside the delimiters a backslash escapes the next character.
func unescapeRecordKey(key string) string {
	var inner string
	switch {
	case len(key) >= len("⟨⟩") && strings.HasPrefix(key, "⟨") && strings.HasSuffix(key, "⟩"):
		inner = key[len("⟨") : len(key)-len("⟩")]
	case len(key) >= 2 && strings.HasPrefix(key, "`") && strings.HasSuffix(key, "`"):
		inner = key[1 : len(key)-1]
	default:
		return key
	}

	var b strings.Builder
	escaped := false
	for _, ch := range inner {
		if ch == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(ch)
	}
	return b.String()
}

// accountDocument builds the stored representation of a, leaving out the
// id and every unset optional field.
func accountDocument(a *domain.Account) map[string]any {
	doc := map[string]any{
		"email":    a.Email,
		"password": a.PasswordHash,
	}
	if a.Name != nil {
		doc["name"] = *a.Name
	}
	if a.SessionToken != nil {
		doc["sessionToken"] = *a.SessionToken
	}
	if a.TokenExpiry != nil {
		doc["tokenExpiry"] = *a.TokenExpiry
	}
	if a.ResetToken != nil {
		doc["resetToken"] = *a.ResetToken
	}
	if a.ResetTokenExpiry != nil {
		doc["resetTokenExpiry"] = *a.ResetTokenExpiry
	}
	if a.AvatarURL != nil {
		doc["avatarUrl"] = *a.AvatarURL
	}
	if a.CreatedAt != nil {
		doc["createdAt"] = *a.CreatedAt
	}
	if a.UpdatedAt != nil {
		doc["updatedAt"] = *a.UpdatedAt
	}
	return doc
}

// isUniqueViolation recognises SurrealDB's unique index error
// ("Database index `account_email` already contains ...").
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrEmailTaken) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "already contains") || strings.Contains(msg, "already exists")
}
