// Package storage keeps uploaded proof images: recharge receipts and
// per-product screenshots. Entries only ever hold the returned reference.
package storage

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var ErrUnsupportedType = errors.New("unsupported file type")

var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type ProofStore interface {
	// Save stores body under folder and returns a reference that can be
	// recorded on a ledger entry or stat entry.
	Save(ctx context.Context, folder, filename string, body io.Reader) (string, error)
}

type object struct {
	key         string
	contentType string
	body        io.Reader
}

// prepare sniffs the content type and builds a collision-free key of the
// form folder/<uuid>-<slugged name><ext>.
func prepare(folder, filename string, body io.Reader) (object, error) {
	reader := bufio.NewReaderSize(body, 512)
	head, err := reader.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) {
		return object{}, err
	}
	contentType := http.DetectContentType(head)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return object{}, ErrUnsupportedType
	}
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	name := uuid.NewString()
	if s := slug.Make(base); s != "" {
		name += "-" + s
	}
	return object{
		key:         path.Join(slug.Make(folder), name+ext),
		contentType: contentType,
		body:        reader,
	}, nil
}
