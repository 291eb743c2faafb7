package oauth

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/database"
	"gorm.io/gorm"
)

// DefaultFlowTTL bounds how long a pending authorization stays redeemable.
const DefaultFlowTTL = 10 * time.Minute

// FlowData carries the data necessary to perform the OAuth authorization workflow.
// It is stored between the generation of the authorization URL and the callback,
// which may happen in different processes.
type FlowData struct {
	// empty when the storage cannot bind the verifier to a state
	State       string
	PKCE        PKCE
	RedirectURI string
	CreatedAt   time.Time
}

func newFlowData(state, redirectURI string, now time.Time) *FlowData {
	return &FlowData{
		State:       state,
		PKCE:        GenerateCodeVerifier(),
		RedirectURI: redirectURI,
		CreatedAt:   now,
	}
}

func (f *FlowData) Expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 || f.CreatedAt.IsZero() {
		return false
	}
	return now.Sub(f.CreatedAt) > ttl
}

// Storage keeps pending flows. Get and Take return ErrUnknownState when nothing is stored.
// Take removes the flow it returns, so concurrent callers never get the same flow twice.
type Storage interface {
	Set(s *FlowData) error
	Get(s string) (*FlowData, error)
	Take(s string) (*FlowData, error)
	Unset(s string) error
}

type InMemoryStorage struct {
	lock    sync.Mutex
	storage map[string]*FlowData
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		storage: make(map[string]*FlowData),
	}
}

func (c *InMemoryStorage) Set(s *FlowData) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.storage[s.State] = s

	return nil
}

func (c *InMemoryStorage) Get(s string) (*FlowData, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	state, ok := c.storage[s]
	if !ok {
		return nil, ErrUnknownState
	}
	return state, nil
}

func (c *InMemoryStorage) Take(s string) (*FlowData, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	state, ok := c.storage[s]
	if !ok {
		return nil, ErrUnknownState
	}
	delete(c.storage, s)

	return state, nil
}

func (c *InMemoryStorage) Unset(s string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if _, ok := c.storage[s]; !ok {
		return ErrUnknownState
	}
	delete(c.storage, s)

	return nil
}

// DefaultVerifierFile is the file shared by the URL generator and the callback handler.
const DefaultVerifierFile = "code_verifier.txt"

// FileStorage writes the verifier alone to a single plaintext file.
// Only one flow can be pending at a time and the state is not recorded,
// so a callback state can never be checked against it.
type FileStorage struct {
	path string
}

func NewFileStorage(path string) *FileStorage {
	if path == "" {
		path = DefaultVerifierFile
	}
	return &FileStorage{path: path}
}

func (c *FileStorage) Path() string {
	return c.path
}

func (c *FileStorage) Set(s *FlowData) error {
	if err := os.WriteFile(c.path, []byte(s.PKCE.Verifier), 0o600); err != nil {
		return fmt.Errorf("failed to write code verifier: %w", err)
	}
	return nil
}

func (c *FileStorage) Get(_ string) (*FlowData, error) {
	return c.read(c.path)
}

// Take moves the verifier file aside before reading it. The rename is atomic,
// only one caller can win it.
func (c *FileStorage) Take(_ string) (*FlowData, error) {
	taken := fmt.Sprintf("%s.%s.taken", c.path, uuid.NewString())

	if err := os.Rename(c.path, taken); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrUnknownState, c.path)
		}
		return nil, fmt.Errorf("failed to read code verifier: %w", err)
	}
	defer func() {
		if err := os.Remove(taken); err != nil {
			slog.Error("failed to remove code verifier", "path", taken, "error", err)
		}
	}()

	return c.read(taken)
}

func (c *FileStorage) read(path string) (*FlowData, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", ErrUnknownState, c.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read code verifier: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read code verifier: %w", err)
	}

	v := strings.TrimSpace(string(b))
	if v == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrUnknownState, c.path)
	}

	return &FlowData{
		PKCE: PKCE{
			Verifier: v,
			Method:   CodeChallengeMethodS256,
		},
		CreatedAt: info.ModTime(),
	}, nil
}

func (c *FileStorage) Unset(_ string) error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove code verifier: %w", err)
	}
	return nil
}

func NewSQLiteStorage(db *gorm.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

type SQLiteStorage struct {
	db *gorm.DB
}

func (c *SQLiteStorage) Set(s *FlowData) error {
	tx := c.db.Create(&database.OAuthFlowData{
		State:         s.State,
		PKCEVerifier:  s.PKCE.Verifier,
		PKCEChallenge: s.PKCE.Challenge,
		PKCEMethod:    s.PKCE.Method,
		RedirectURI:   s.RedirectURI,
		CreatedAt:     s.CreatedAt,
	})
	if tx.Error != nil {
		return fmt.Errorf("failed to store flow data: %w", tx.Error)
	}
	return nil
}

func (c *SQLiteStorage) Get(s string) (*FlowData, error) {
	return c.get(c.db, s)
}

// Take loads and deletes the flow in one transaction. A concurrent Take that
// deletes nothing gets ErrUnknownState.
func (c *SQLiteStorage) Take(s string) (*FlowData, error) {
	var flow *FlowData
	err := c.db.Transaction(func(tx *gorm.DB) error {
		f, err := c.get(tx, s)
		if err != nil {
			return err
		}

		res := tx.Where("state = ?", s).Delete(&database.OAuthFlowData{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete flow data: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrUnknownState
		}

		flow = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flow, nil
}

func (c *SQLiteStorage) get(db *gorm.DB, s string) (*FlowData, error) {
	var data *database.OAuthFlowData
	if tx := db.Where("state = ?", s).First(&data); tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownState
		}
		return nil, fmt.Errorf("failed to load flow data: %w", tx.Error)
	}

	return &FlowData{
		State: data.State,
		PKCE: PKCE{
			Verifier:  data.PKCEVerifier,
			Challenge: data.PKCEChallenge,
			Method:    data.PKCEMethod,
		},
		RedirectURI: data.RedirectURI,
		CreatedAt:   data.CreatedAt,
	}, nil
}

func (c *SQLiteStorage) Unset(s string) error {
	tx := c.db.Where("state = ?", s).Delete(&database.OAuthFlowData{})
	if tx.Error != nil {
		return fmt.Errorf("failed to delete flow data: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrUnknownState
	}
	return nil
}

// Purge drops flows created before the cutoff.
func (c *SQLiteStorage) Purge(before time.Time) (int64, error) {
	tx := c.db.Where("created_at < ?", before).Delete(&database.OAuthFlowData{})
	return tx.RowsAffected, tx.Error
}

const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// OpenStorage returns the storage of the given kind. path is the verifier
// file for the file storage and the database for the sqlite one.
func OpenStorage(kind, path string) (Storage, error) {
	switch kind {
	case StorageFile:
		return NewFileStorage(path), nil
	case StorageSQLite, "":
		db, err := database.Open(path)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStorage(db), nil
	case StorageMemory:
		return NewInMemoryStorage(), nil
	}
	return nil, fmt.Errorf("unknown storage %q, expected one of %s, %s or %s", kind, StorageSQLite, StorageFile, StorageMemory)
}
