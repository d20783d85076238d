package gcs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/campusmart/campusmart-backend/pkg/config"
)

func fakeBucket(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := newClient(context.Background(),
		config.GCSConfig{BucketName: "bucket", PublicBaseURL: "https://cdn.example.com/"},
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestUploadObjectSendsMetadataAndBytes(t *testing.T) {
	var body string
	client := fakeBucket(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/upload/storage/v1/b/bucket/o", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		writeJSON(w, http.StatusOK, `{"name":"items/user-1/photo.png","bucket":"bucket"}`)
	})

	err := client.UploadObject(context.Background(), "", "items/user-1/photo.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.Contains(t, body, "png-bytes")
	require.Contains(t, body, "items/user-1/photo.png")
	require.Contains(t, body, "image/png")
}

func TestUploadObjectSurfacesAPIErrors(t *testing.T) {
	client := fakeBucket(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusForbidden, `{"error":{"code":403,"message":"permission denied"}}`)
	})

	err := client.UploadObject(context.Background(), "bucket", "items/a.png", "image/png", strings.NewReader("x"))
	require.ErrorContains(t, err, "permission denied")

	err = client.UploadObject(context.Background(), "bucket", " ", "image/png", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrEmptyObjectID)

	var empty *Client
	require.ErrorIs(t, empty.UploadObject(context.Background(), "bucket", "a", "image/png", strings.NewReader("x")), ErrNotConnected)
}

func TestDeleteObjectEscapesName(t *testing.T) {
	client := fakeBucket(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.True(t, strings.HasSuffix(r.URL.EscapedPath(), "/o/items%2Fuser-1%2Ffile.png"), r.URL.EscapedPath())
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.DeleteObject(context.Background(), "", "items/user-1/file.png"))
}

func TestDeleteObjectIgnoresMissing(t *testing.T) {
	client := fakeBucket(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"error":{"code":404,"message":"No such object"}}`)
	})

	require.NoError(t, client.DeleteObject(context.Background(), "bucket", "items/file.png"))
}

func TestPingListsDefaultBucket(t *testing.T) {
	client := fakeBucket(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/storage/v1/b/bucket/o", r.URL.Path)
		require.Equal(t, "1", r.URL.Query().Get("maxResults"))
		writeJSON(w, http.StatusOK, `{"items":[]}`)
	})

	require.NoError(t, client.Ping(context.Background()))
}

func TestPublicURL(t *testing.T) {
	client := &Client{bucket: "bucket", publicBaseURL: "https://cdn.example.com"}
	require.Equal(t, "https://cdn.example.com/bucket/items/a.png", client.PublicURL("items/a.png"))

	client.publicBaseURL = ""
	require.Equal(t, "https://storage.googleapis.com/bucket/items/a.png", client.PublicURL("items/a.png"))
}

func TestNewClientRequiresBucket(t *testing.T) {
	_, err := newClient(context.Background(), config.GCSConfig{BucketName: "  "})
	require.Error(t, err)
}

func TestClientOptionsPreferInlineJSON(t *testing.T) {
	require.Len(t, clientOptions(config.GCPConfig{}), 1)
	require.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/x.json"}), 2)
}
