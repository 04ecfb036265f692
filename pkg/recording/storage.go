package recording

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/MrCodeEU/facegate/pkg/logging"
)

const (
	// NonceSize is the size of the nonce used for encryption
	NonceSize = 24
	// KeySize is the size of the encryption key
	KeySize = 32
)

// ErrEncryption is returned when encryption/decryption fails.
var ErrEncryption = errors.New("encryption error")

// FileStorage keeps one file per recording, optionally sealed with NaCl
// secretbox under a machine-bound key. Raw samples are biometric data.
type FileStorage struct {
	dir               string
	encryptionEnabled bool
	encryptionKey     [KeySize]byte
}

// NewFileStorage creates storage under dir, creating it if needed.
func NewFileStorage(dir string, encryptionEnabled bool) (*FileStorage, error) {
	fs := &FileStorage{
		dir:               dir,
		encryptionEnabled: encryptionEnabled,
	}

	// Derive encryption key from machine-specific information
	if encryptionEnabled {
		fs.encryptionKey = deriveKey()
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}

	return fs, nil
}

// deriveKey derives an encryption key from machine-specific information.
// This ties the encrypted data to this specific machine and user.
func deriveKey() [KeySize]byte {
	var identity strings.Builder

	// Machine ID (Linux specific)
	if machineID, err := os.ReadFile("/etc/machine-id"); err == nil {
		identity.Write(machineID)
	}

	if hostname, err := os.Hostname(); err == nil {
		identity.WriteString(hostname)
	}

	identity.WriteString(fmt.Sprintf("%d", os.Getuid()))
	identity.WriteString("facegate-recording-v1")

	return sha256.Sum256([]byte(identity.String()))
}

// path returns the file path for a recording.
func (fs *FileStorage) path(id string) string {
	ext := ".json"
	if fs.encryptionEnabled {
		ext = ".enc"
	}
	return filepath.Join(fs.dir, id+ext)
}

// Save writes a recording, replacing any existing one with the same id.
func (fs *FileStorage) Save(rec *Recording) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recording: %w", err)
	}

	if fs.encryptionEnabled {
		data, err = fs.encrypt(data)
		if err != nil {
			return fmt.Errorf("failed to encrypt recording: %w", err)
		}
	}

	if err := os.WriteFile(fs.path(rec.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}

	logging.Debugf("Saved recording %s (%d frames)", rec.ID, len(rec.Frames))
	return nil
}

// Create writes a new recording and fails if the id is already used.
func (fs *FileStorage) Create(rec *Recording) error {
	if fs.Exists(rec.ID) {
		return ErrRecordingExists
	}
	return fs.Save(rec)
}

// Load reads a recording by id.
func (fs *FileStorage) Load(id string) (*Recording, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fs.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRecordingNotFound
		}
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}

	if fs.encryptionEnabled {
		data, err = fs.decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt recording: %w", err)
		}
	}

	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recording: %w", err)
	}

	logging.Debugf("Loaded recording %s", id)
	return &rec, nil
}

// Delete removes a recording.
func (fs *FileStorage) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	if err := os.Remove(fs.path(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrRecordingNotFound
		}
		return fmt.Errorf("failed to delete recording: %w", err)
	}

	logging.Infof("Deleted recording %s", id)
	return nil
}

// List returns the ids of all stored recordings in sorted order.
func (fs *FileStorage) List() ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}

	ext := filepath.Ext(fs.path("x"))
	ids := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name := entry.Name(); strings.HasSuffix(name, ext) {
			ids = append(ids, strings.TrimSuffix(name, ext))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Exists checks if a recording is stored.
func (fs *FileStorage) Exists(id string) bool {
	if validateID(id) != nil {
		return false
	}
	_, err := os.Stat(fs.path(id))
	return err == nil
}

// Import reads a plain JSON recording from path and stores it. A missing id
// is generated.
func (fs *FileStorage) Import(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecording, err)
	}
	if rec.ID == "" {
		imported := New(rec.Label, rec.Challenge)
		rec.ID = imported.ID
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = imported.CreatedAt
		}
	}

	if err := fs.Create(&rec); err != nil {
		return nil, err
	}

	logging.Infof("Imported recording %s from %s", rec.ID, path)
	return &rec, nil
}

// encrypt encrypts data using NaCl secretbox.
func (fs *FileStorage) encrypt(plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}

	return secretbox.Seal(nonce[:], plaintext, &nonce, &fs.encryptionKey), nil
}

// decrypt decrypts data using NaCl secretbox.
func (fs *FileStorage) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrEncryption
	}

	var nonce [NonceSize]byte
	copy(nonce[:], ciphertext[:NonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[NonceSize:], &nonce, &fs.encryptionKey)
	if !ok {
		return nil, ErrEncryption
	}

	return plaintext, nil
}
