package fetcher

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// maxBulk caps a single bulk download.
const maxBulk = 512 << 20

// BulkFile identifies a downloadable CSV dataset.
type BulkFile struct {
	Source string
	URL    string
	// Entry names the CSV member when URL points at a ZIP archive.
	Entry string
	CSV   CSVOptions
}

func (f BulkFile) key() string { return f.URL + "#" + f.Entry }

// Bulk downloads bulk datasets at most once per TTL and serves parsed rows
// from memory. Concurrent loads of the same file share one download.
type Bulk struct {
	client *Client
	rows   *gocache.Cache
	group  singleflight.Group
	ttl    time.Duration
}

// NewBulk creates a Bulk loader whose rows expire after ttl.
func NewBulk(client *Client, ttl time.Duration) *Bulk {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Bulk{
		client: client,
		rows:   gocache.New(ttl, ttl/2),
		ttl:    ttl,
	}
}

// Rows returns every row of f, downloading it if not cached.
func (b *Bulk) Rows(ctx context.Context, f BulkFile) ([]Row, error) {
	key := f.key()
	if v, ok := b.rows.Get(key); ok {
		return v.([]Row), nil
	}

	// Detach the shared download from the first caller's cancellation so
	// waiters are not failed by another request's timeout.
	v, err, _ := b.group.Do(key, func() (any, error) {
		if v, ok := b.rows.Get(key); ok {
			return v, nil
		}
		rows, err := b.load(context.WithoutCancel(ctx), f)
		if err != nil {
			return nil, err
		}
		b.rows.Set(key, rows, gocache.DefaultExpiration)
		zap.L().Info("bulk: dataset loaded",
			zap.String("source", f.Source),
			zap.String("url", f.URL),
			zap.Int("rows", len(rows)),
		)
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Row), nil
}

// Scan calls fn for each row of f until fn returns ErrStop.
func (b *Bulk) Scan(ctx context.Context, f BulkFile, fn func(Row) error) error {
	rows, err := b.Rows(ctx, f)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "bulk: context cancelled")
		}
		if err := fn(row); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
	return nil
}

func (b *Bulk) load(ctx context.Context, f BulkFile) ([]Row, error) {
	body, err := b.client.Download(ctx, f.Source, f.URL)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(body, maxBulk))
	if err != nil {
		return nil, eris.Wrapf(err, "bulk: read %s", f.URL)
	}

	var r io.Reader = bytes.NewReader(data)
	if f.Entry != "" || isZip(data) {
		r, err = zipMember(data, f.Entry)
		if err != nil {
			return nil, err
		}
	}

	var rows []Row
	err = ScanCSV(ctx, r, f.CSV, func(row Row) error {
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "bulk: parse %s", f.URL)
	}
	return rows, nil
}

func isZip(data []byte) bool {
	return len(data) > 4 && bytes.Equal(data[:4], []byte("PK\x03\x04"))
}

// zipMember opens the named member, or the only file when name is empty.
func zipMember(data []byte, name string) (io.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}

	var files []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if name != "" && strings.EqualFold(f.Name, name) {
			files = []*zip.File{f}
			break
		}
		if name == "" {
			files = append(files, f)
		}
	}
	if len(files) != 1 {
		if name != "" {
			return nil, eris.Errorf("zip: file %q not found in archive", name)
		}
		return nil, eris.Errorf("zip: expected exactly 1 file, got %d", len(files))
	}

	rc, err := files[0].Open()
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open %s", files[0].Name)
	}
	defer rc.Close() //nolint:errcheck

	member, err := io.ReadAll(io.LimitReader(rc, maxBulk))
	if err != nil {
		return nil, eris.Wrapf(err, "zip: read %s", files[0].Name)
	}
	return bytes.NewReader(member), nil
}
