package fetcher

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestBulkRows_DownloadsOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("name,state\nJane Doe,TX\nJohn Roe,CA\n"))
	}))
	defer srv.Close()

	b := NewBulk(testClient(), time.Hour)
	file := BulkFile{Source: "license_bulk", URL: srv.URL}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := b.Rows(context.Background(), file)
			if assert.NoError(t, err) {
				assert.Len(t, rows, 2)
			}
		}()
	}
	wg.Wait()

	_, err := b.Rows(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBulkRows_ZipEntry(t *testing.T) {
	payload := zipBytes(t, map[string]string{
		"MASTER.txt":  "N-NUMBER,NAME,STATE\n123AB,DOE JANE,TX\n",
		"ACFTREF.txt": "CODE,MFR\nX,CESSNA\n",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	b := NewBulk(testClient(), time.Hour)
	rows, err := b.Rows(context.Background(), BulkFile{Source: "faa_registry", URL: srv.URL, Entry: "master.txt"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "123AB", rows[0]["n_number"])

	_, err = b.Rows(context.Background(), BulkFile{Source: "faa_registry", URL: srv.URL})
	assert.Error(t, err, "multi-file archive needs an entry name")
}

func TestBulkRows_ErrorNotCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("x\n1\n"))
	}))
	defer srv.Close()

	b := NewBulk(testClient(), time.Hour)
	file := BulkFile{Source: "nsc_bulk", URL: srv.URL}

	_, err := b.Rows(context.Background(), file)
	require.Error(t, err)

	rows, err := b.Rows(context.Background(), file)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestBulkScan_Stop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("x\n1\n2\n3\n"))
	}))
	defer srv.Close()

	b := NewBulk(testClient(), time.Hour)
	var seen []string
	err := b.Scan(context.Background(), BulkFile{Source: "nsc_bulk", URL: srv.URL}, func(r Row) error {
		seen = append(seen, r["x"])
		if len(seen) == 2 {
			return ErrStop
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, seen)
}
