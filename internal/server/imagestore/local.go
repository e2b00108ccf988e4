package imagestore

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/filex"
)

// LocalStore writes images into a directory on the local filesystem.
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &LocalStore{dir: abs}, nil
}

func (s *LocalStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return filex.WriteFile(s.dir, name, data)
}

func (s *LocalStore) Dir() string {
	return s.dir
}
