// Package docrender отрисовывает итоговое письмо в PDF и хранит готовые файлы.
package docrender

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var (
	// ErrInvalidName — имя файла не соответствует шаблону letter-{id}-{timestamp}.pdf.
	ErrInvalidName = errors.New("invalid document name")
	// ErrMissing — файл документа отсутствует на диске.
	ErrMissing = errors.New("document file missing")
)

// Миллисекунды дописываются отдельно: в layout дробная часть распознаётся только после точки или запятой.
const timestampLayout = "2006-01-02T15-04-05"

var namePattern = regexp.MustCompile(`^letter-[A-Za-z0-9-]{1,64}-\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z\.pdf$`)

// FileName возвращает имя документа для письма, отрисованного в момент at.
func FileName(letterID string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("letter-%s-%s-%03dZ.pdf", letterID, at.Format(timestampLayout), at.Nanosecond()/int(time.Millisecond))
}

// ValidName проверяет имя на соответствие шаблону и отсутствие элементов пути.
func ValidName(name string) bool {
	return name == filepath.Base(name) && namePattern.MatchString(name)
}

// Document — открытый файл документа.
type Document struct {
	Name    string
	ModTime time.Time
	Size    int64
	Content io.ReadSeekCloser
}

// Store хранит документы в одном каталоге.
type Store struct {
	dir string
}

// NewStore создаёт каталог, если его нет.
func NewStore(dir string) (*Store, error) {
	const op = "docrender.NewStore"
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{dir: dir}, nil
}

// Save записывает документ под именем name через временный файл.
func (s *Store) Save(name string, write func(io.Writer) error) error {
	const op = "docrender.Store.Save"
	if !ValidName(name) {
		return fmt.Errorf("%s: %w", op, ErrInvalidName)
	}

	tmp, err := os.CreateTemp(s.dir, ".render-*")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Open открывает документ по имени, проверенному на обход каталога.
func (s *Store) Open(name string) (*Document, error) {
	const op = "docrender.Store.Open"
	if !ValidName(name) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidName)
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", op, ErrMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Document{Name: name, ModTime: info.ModTime(), Size: info.Size(), Content: f}, nil
}
