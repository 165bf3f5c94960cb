package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bookforge/internal/fileutil"
)

const manifestName = "session.json"

// Session is the externally persisted partial-completion state for a
// resumable stage.
type Session struct {
	SessionID         string    `json:"session_id"`
	InputIdentity     string    `json:"input_identity"`
	CompletedUnits    int       `json:"completed_units"`
	TotalUnits        int       `json:"total_units"`
	PartialOutputDirs []string  `json:"partial_output_dirs,omitempty"`
	Complete          bool      `json:"complete"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Identity derives the stable input identity a session is keyed by. The same
// input synthesized with the same voice always maps to the same session.
func Identity(inputRef, voice string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(inputRef) + "\x00" + strings.TrimSpace(voice)))
	return hex.EncodeToString(sum[:8])
}

// Store reads and writes session manifests under a root directory, one
// subdirectory per input identity.
type Store struct {
	root string
}

// NewStore returns a session store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// CheckResumable returns the session for an input identity, or nil when no
// session exists or its manifest is unreadable.
func (s *Store) CheckResumable(inputIdentity string) (*Session, error) {
	if strings.TrimSpace(inputIdentity) == "" {
		return nil, errors.New("input identity required")
	}
	data, err := os.ReadFile(s.manifestPath(inputIdentity))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session manifest: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		// A torn manifest is treated as no session rather than a hard error.
		return nil, nil
	}
	return &session, nil
}

// Save writes or replaces a session manifest.
func (s *Store) Save(session Session) error {
	if strings.TrimSpace(session.InputIdentity) == "" {
		return errors.New("input identity required")
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session manifest: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.manifestPath(session.InputIdentity), data, 0o644); err != nil {
		return fmt.Errorf("write session manifest: %w", err)
	}
	return nil
}

// Discard removes the session (and any partial output) for an input identity.
func (s *Store) Discard(inputIdentity string) error {
	if strings.TrimSpace(inputIdentity) == "" {
		return errors.New("input identity required")
	}
	if err := os.RemoveAll(s.sessionDir(inputIdentity)); err != nil {
		return fmt.Errorf("discard session: %w", err)
	}
	return nil
}

// SessionDir returns the directory backing an input identity's session.
func (s *Store) SessionDir(inputIdentity string) string {
	return s.sessionDir(inputIdentity)
}

func (s *Store) sessionDir(inputIdentity string) string {
	return filepath.Join(s.root, inputIdentity)
}

func (s *Store) manifestPath(inputIdentity string) string {
	return filepath.Join(s.sessionDir(inputIdentity), manifestName)
}
