package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreUpload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/documents/", nil)
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), "kyc_docs/1/aadhaar_0c6f4a2e", []byte("scan"))
	require.NoError(t, err)
	assert.Equal(t, "/documents/kyc_docs/1/aadhaar_0c6f4a2e", url)

	data, err := os.ReadFile(filepath.Join(dir, "kyc_docs", "1", "aadhaar_0c6f4a2e"))
	require.NoError(t, err)
	assert.Equal(t, "scan", string(data))
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/documents", nil)
	require.NoError(t, err)

	for _, key := range []string{"", "../secret", "kyc_docs/../../x", "/abs"} {
		t.Run(key, func(t *testing.T) {
			_, err := store.Upload(context.Background(), key, []byte("x"))
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestLocalStoreCanceledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/documents", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Upload(ctx, "kyc_docs/1/pan_x", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalStoreHandler(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/documents", nil)
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), KYCKey(7, "pan"), []byte("pan-scan"))
	require.NoError(t, err)

	srv := httptest.NewServer(store.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pan-scan", string(body))
}

func TestLocalStoreHandlerRefusesDirectories(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/documents", nil)
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), KYCKey(7, "aadhaar"), []byte("aadhaar-scan"))
	require.NoError(t, err)

	srv := httptest.NewServer(store.Handler())
	defer srv.Close()

	for _, p := range []string{"/documents/", "/documents/kyc_docs/", "/documents/kyc_docs/7/", "/documents/kyc_docs/7"} {
		t.Run(p, func(t *testing.T) {
			resp, err := http.Get(srv.URL + p)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			assert.NotContains(t, string(body), "aadhaar")
		})
	}
}

func TestKYCKey(t *testing.T) {
	a := KYCKey(42, "aadhaar")
	b := KYCKey(42, "aadhaar")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "kyc_docs/42/aadhaar_"))

	owner, ok := KYCOwner(a)
	require.True(t, ok)
	assert.Equal(t, int64(42), owner)
}

func TestKYCOwner(t *testing.T) {
	tests := []struct {
		key    string
		want   int64
		wantOK bool
	}{
		{key: "kyc_docs/11/pan_x", want: 11, wantOK: true},
		{key: "/kyc_docs/11/pan_x", want: 11, wantOK: true},
		{key: "kyc_docs/12/../11/pan_x", want: 11, wantOK: true},
		{key: "kyc_docs/11/", wantOK: false},
		{key: "kyc_docs/11", wantOK: false},
		{key: "kyc_docs/abc/pan_x", wantOK: false},
		{key: "kyc_docs/0/pan_x", wantOK: false},
		{key: "other/11/pan_x", wantOK: false},
		{key: "kyc_docs/11/nested/pan_x", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := KYCOwner(tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
