// Package storage хранит сканы документов KYC и выдаёт на них постоянные URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidKey возвращается для ключей, выходящих за пределы каталога хранилища.
var ErrInvalidKey = errors.New("invalid document key")

const kycDir = "kyc_docs"

// KYCKey строит ключ для скана документа пользователя. Ключ содержит id
// владельца и случайный суффикс.
func KYCKey(userID int64, kind string) string {
	return fmt.Sprintf("%s/%d/%s_%s", kycDir, userID, kind, uuid.NewString())
}

// KYCOwner возвращает id владельца скана по ключу вида kyc_docs/<id>/<файл>.
func KYCOwner(key string) (int64, bool) {
	parts := strings.Split(path.Clean("/" + key)[1:], "/")
	if len(parts) != 3 || parts[0] != kycDir || parts[2] == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// LocalStore сохраняет документы в каталоге на диске.
type LocalStore struct {
	dir     string
	baseURL string
	logger  *zap.Logger
}

// NewLocalStore создаёт каталог хранилища, если его нет.
func NewLocalStore(dir, baseURL string, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Upload записывает документ под ключом и возвращает его URL.
func (s *LocalStore) Upload(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != key {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	full := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create document dir: %w", err)
	}

	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("store document: %w", err)
	}

	s.logger.Debug("document stored", zap.String("key", clean), zap.Int("size", len(data)))
	return s.baseURL + "/" + clean, nil
}

// Handler раздаёт сохранённые документы. Каталоги не раздаются.
func (s *LocalStore) Handler() http.Handler {
	return http.StripPrefix(s.baseURL, http.FileServer(filesOnly{http.Dir(s.dir)}))
}

// filesOnly отвечает «не найдено» на любой каталог.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

// BaseURL возвращает префикс URL, под которым раздаются документы.
func (s *LocalStore) BaseURL() string {
	return s.baseURL
}
