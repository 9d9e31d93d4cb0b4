package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const fileHeaderSize = 16

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// FileConfig configures a FileStore.
type FileConfig struct {
	Dir string
	// MaxBytes limits a single value; zero means unlimited.
	MaxBytes int64
	Logger   *log.Logger
}

// FileStore keeps one file per key under Dir. Each file starts with a
// 16 byte header (payload length, CRC32-C, save time) followed by the
// payload. Writes go to a temp file that is synced and renamed into place.
type FileStore struct {
	cfg FileConfig
	mu  sync.Mutex
	now func() time.Time
}

func NewFileStore(cfg FileConfig) (*FileStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("file store dir required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{cfg: cfg, now: time.Now}, nil
}

func (s *FileStore) path(key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, key)
	return filepath.Join(s.cfg.Dir, name+".snap")
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(data) < fileHeaderSize {
		return nil, fmt.Errorf("%w: short header in %s", ErrCorrupt, key)
	}
	length := binary.LittleEndian.Uint32(data[0:4])
	crc := binary.LittleEndian.Uint32(data[4:8])
	payload := data[fileHeaderSize:]
	if uint32(len(payload)) != length {
		return nil, fmt.Errorf("%w: length mismatch in %s: header=%d payload=%d", ErrCorrupt, key, length, len(payload))
	}
	if crc32.Checksum(payload, crcTable) != crc {
		return nil, fmt.Errorf("%w: checksum mismatch in %s", ErrCorrupt, key)
	}
	return payload, nil
}

// SavedAt returns the save time recorded in the header of key.
func (s *FileStore) SavedAt(key string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, err
	}
	defer f.Close()
	hdr := make([]byte, fileHeaderSize)
	if _, err := io.ReadFull(f, hdr); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return time.UnixMilli(int64(binary.LittleEndian.Uint64(hdr[8:16]))), nil
}

func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	if s.cfg.MaxBytes > 0 && int64(len(value)) > s.cfg.MaxBytes {
		return ErrQuotaExceeded
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	header := make([]byte, fileHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(value)))
	binary.LittleEndian.PutUint32(header[4:8], crc32.Checksum(value, crcTable))
	binary.LittleEndian.PutUint64(header[8:16], uint64(s.now().UnixMilli()))

	path := s.path(key)
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(header); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(value); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	if err := syncDir(s.cfg.Dir); err != nil && s.cfg.Logger != nil {
		s.cfg.Logger.WithError(err).Warnf("failed to sync dir %s", s.cfg.Dir)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func syncDir(path string) error {
	dir, err := os.Open(path)
	if err != nil {
		return err
	}
	defer dir.Close()
	return dir.Sync()
}
