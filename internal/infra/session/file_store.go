package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"

	"noe/internal/domain/user"
)

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32
)

// FileStore keeps the session in a single JSON file. When a passphrase is set
// the file is sealed with secretbox under a scrypt-derived key.
type FileStore struct {
	path       string
	passphrase []byte

	mu sync.Mutex
}

type sealedFile struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	Box   []byte `json:"box"`
}

func NewFileStore(path, passphrase string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session: path required")
	}
	s := &FileStore{path: path}
	if passphrase != "" {
		s.passphrase = []byte(passphrase)
	}
	return s, nil
}

// Load returns the stored session. A missing file yields ErrNotAuthenticated;
// unreadable content is removed and reported as ErrMalformedSession.
func (s *FileStore) Load(ctx context.Context) (*user.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, user.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("session: read: %w", err)
	}
	sess, err := s.decode(raw)
	if err != nil {
		_ = os.Remove(s.path)
		return nil, err
	}
	return sess, nil
}

func (s *FileStore) Save(ctx context.Context, sess *user.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sess == nil {
		return user.ErrTokenRequired
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if s.passphrase != nil {
		if payload, err = s.seal(payload); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.path, payload)
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}

func (s *FileStore) decode(raw []byte) (*user.Session, error) {
	if s.passphrase != nil {
		opened, err := s.open(raw)
		if err != nil {
			return nil, err
		}
		raw = opened
	}
	var sess user.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", user.ErrMalformedSession, err)
	}
	if sess.Token == "" || sess.User.ID == "" {
		return nil, user.ErrMalformedSession
	}
	return &sess, nil
}

func (s *FileStore) seal(plain []byte) ([]byte, error) {
	var salt [saltSize]byte
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return nil, fmt.Errorf("session: salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("session: nonce: %w", err)
	}
	key, err := deriveKey(s.passphrase, salt[:])
	if err != nil {
		return nil, err
	}
	box := secretbox.Seal(nil, plain, &nonce, key)
	return json.Marshal(sealedFile{Salt: salt[:], Nonce: nonce[:], Box: box})
}

func (s *FileStore) open(raw []byte) ([]byte, error) {
	var f sealedFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", user.ErrMalformedSession, err)
	}
	if len(f.Salt) != saltSize || len(f.Nonce) != nonceSize {
		return nil, user.ErrMalformedSession
	}
	key, err := deriveKey(s.passphrase, f.Salt)
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], f.Nonce)
	plain, ok := secretbox.Open(nil, f.Box, &nonce, key)
	if !ok {
		return nil, fmt.Errorf("%w: seal check failed", user.ErrMalformedSession)
	}
	return plain, nil
}

func deriveKey(passphrase, salt []byte) (*[keySize]byte, error) {
	k, err := scrypt.Key(passphrase, salt, 1<<15, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("session: derive key: %w", err)
	}
	var key [keySize]byte
	copy(key[:], k)
	return &key, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("session: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("session: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("session: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: close: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("session: chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("session: rename: %w", err)
	}
	return nil
}
