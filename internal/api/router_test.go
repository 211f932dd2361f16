package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgvault/tgvault/internal/api/handlers"
	"github.com/tgvault/tgvault/internal/blobstore"
	"github.com/tgvault/tgvault/internal/crypt"
	"github.com/tgvault/tgvault/internal/progress"
	"github.com/tgvault/tgvault/internal/repositories"
	"github.com/tgvault/tgvault/internal/share"
	"github.com/tgvault/tgvault/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type apiEnv struct {
	ts     *httptest.Server
	client *http.Client
	store  *blobstore.MemoryStore
	db     *gorm.DB
}

type payload struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))

	store := blobstore.NewMemoryStore()
	vault := crypt.NewVault(filepath.Join(t.TempDir(), "vault.key"))
	hub := progress.NewHub(5 * time.Second)
	index := storage.NewIndex(db)
	engine := storage.NewEngine(db, store, vault, index, hub, t.TempDir())
	secret := []byte("router-test-secret")

	h := &handlers.Handler{
		DB:          db,
		Engine:      engine,
		Index:       index,
		Hub:         hub,
		Gate:        share.NewGate(db, secret, time.Hour),
		Store:       store,
		JWTSecret:   secret,
		StagingDir:  t.TempDir(),
		Environment: "development",
		SessionTTL:  time.Hour,
	}

	ts := httptest.NewServer(SetupRouter(h))
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &apiEnv{
		ts:     ts,
		client: &http.Client{Jar: jar},
		store:  store,
		db:     db,
	}
}

func (env *apiEnv) request(t *testing.T, method, path string, body any) (*http.Response, payload) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, env.ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var p payload
	_ = json.NewDecoder(resp.Body).Decode(&p)
	return resp, p
}

func (env *apiEnv) signUpAndLogin(t *testing.T, username, password string) string {
	t.Helper()

	resp, _ := env.request(t, http.MethodPost, "/api/v1/auth/sign-up", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, p := env.request(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(p.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func (env *apiEnv) createFolder(t *testing.T, name string) {
	t.Helper()
	resp, _ := env.request(t, http.MethodPost, "/api/v1/folders/", map[string]string{"folder": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func (env *apiEnv) upload(t *testing.T, folder, filename, content string) payload {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, env.ts.URL+"/api/v1/folders/"+folder+"/files/", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var p payload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	return p
}

func uploadedFilename(t *testing.T, p payload) string {
	t.Helper()
	var data struct {
		OperationID string `json:"operation_id"`
		Status      string `json:"status"`
		File        struct {
			Filename string `json:"filename"`
		} `json:"file"`
	}
	require.NoError(t, json.Unmarshal(p.Data, &data))
	require.Equal(t, "completed", data.Status)
	require.NotEmpty(t, data.OperationID)
	return data.File.Filename
}

func TestAuthFlow(t *testing.T) {
	env := newAPIEnv(t)

	// Protected routes reject anonymous callers.
	resp, p := env.request(t, http.MethodGet, "/api/v1/folders/", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized", p.Message)

	env.signUpAndLogin(t, "alice", "hunter22")

	// Duplicate registration conflicts.
	resp, _ = env.request(t, http.MethodPost, "/api/v1/auth/sign-up", map[string]string{
		"username": "alice",
		"password": "other",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Wrong password is rejected.
	resp, _ = env.request(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// The session cookie unlocks protected routes.
	resp, _ = env.request(t, http.MethodGet, "/api/v1/folders/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Logout clears the cookie.
	resp, _ = env.request(t, http.MethodPost, "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.request(t, http.MethodGet, "/api/v1/folders/", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFileLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	env.signUpAndLogin(t, "alice", "hunter22")
	env.createFolder(t, "docs")
	env.createFolder(t, "archive")

	// Uploading the same name twice wraps the duplicate.
	first := env.upload(t, "docs", "report.pdf", "first contents")
	assert.Equal(t, "report.pdf", uploadedFilename(t, first))
	second := env.upload(t, "docs", "report.pdf", "second contents")
	assert.Equal(t, "(1).report.pdf", uploadedFilename(t, second))
	assert.Equal(t, 2, env.store.Len())

	resp, p := env.request(t, http.MethodGet, "/api/v1/folders/docs/files/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var files []struct {
		Filename string `json:"filename"`
	}
	require.NoError(t, json.Unmarshal(p.Data, &files))
	assert.Len(t, files, 2)

	// Download streams the original bytes as an attachment.
	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/v1/folders/docs/files/report.pdf/download", nil)
	require.NoError(t, err)
	dlResp, err := env.client.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(dlResp.Body)
	dlResp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, dlResp.StatusCode)
	assert.Equal(t, "first contents", string(body))
	assert.Contains(t, dlResp.Header.Get("Content-Disposition"), `"report.pdf"`)

	// Rename refuses to overwrite a sibling.
	resp, _ = env.request(t, http.MethodPut, "/api/v1/folders/docs/files/report.pdf/rename", map[string]string{
		"new_name": "(1).report.pdf",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.request(t, http.MethodPut, "/api/v1/folders/docs/files/report.pdf/rename", map[string]string{
		"new_name": "annual-report.pdf",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Moving relocates membership and the file's folder.
	resp, _ = env.request(t, http.MethodPost, "/api/v1/folders/docs/files/annual-report.pdf/move", map[string]string{
		"dest_folder": "archive",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, p = env.request(t, http.MethodGet, "/api/v1/folders/archive/files/annual-report.pdf", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.request(t, http.MethodDelete, "/api/v1/folders/archive/files/annual-report.pdf", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, env.store.Len())

	// Deleting the folder purges its remaining remote objects.
	resp, _ = env.request(t, http.MethodDelete, "/api/v1/folders/docs", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, env.store.Len())
}

func TestShareFlow(t *testing.T) {
	env := newAPIEnv(t)
	env.signUpAndLogin(t, "alice", "hunter22")
	env.createFolder(t, "docs")
	env.upload(t, "docs", "report.pdf", "shared contents")

	resp, p := env.request(t, http.MethodPost, "/api/v1/folders/docs/files/report.pdf/share", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var shareData struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(p.Data, &shareData))
	require.True(t, strings.HasPrefix(shareData.URL, "/api/v1/access/file/"))

	// Anonymous visitors need no session for share access.
	anon := &http.Client{}
	infoResp, err := anon.Get(env.ts.URL + shareData.URL)
	require.NoError(t, err)
	infoResp.Body.Close()
	assert.Equal(t, http.StatusOK, infoResp.StatusCode)

	dlResp, err := anon.Get(env.ts.URL + shareData.URL + "/download")
	require.NoError(t, err)
	body, err := io.ReadAll(dlResp.Body)
	dlResp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, dlResp.StatusCode)
	assert.Equal(t, "shared contents", string(body))

	// Revocation shuts the door immediately.
	token := strings.TrimPrefix(shareData.URL, "/api/v1/access/file/")
	resp, _ = env.request(t, http.MethodPost, "/api/v1/access/revoke/"+token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	dlResp, err = anon.Get(env.ts.URL + shareData.URL + "/download")
	require.NoError(t, err)
	dlResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, dlResp.StatusCode)
}

func TestSharedFolderFlow(t *testing.T) {
	env := newAPIEnv(t)
	env.signUpAndLogin(t, "alice", "hunter22")
	env.createFolder(t, "docs")
	env.upload(t, "docs", "a.txt", "aaa")
	env.upload(t, "docs", "b.txt", "bbb")

	resp, p := env.request(t, http.MethodPost, "/api/v1/folders/docs/share", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var shareData struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(p.Data, &shareData))

	anon := &http.Client{}
	infoResp, err := anon.Get(env.ts.URL + shareData.URL)
	require.NoError(t, err)
	var listing payload
	require.NoError(t, json.NewDecoder(infoResp.Body).Decode(&listing))
	infoResp.Body.Close()
	require.Equal(t, http.StatusOK, infoResp.StatusCode)
	var files []struct {
		Filename string `json:"filename"`
	}
	require.NoError(t, json.Unmarshal(listing.Data, &files))
	assert.Len(t, files, 2)

	dlResp, err := anon.Get(env.ts.URL + shareData.URL + "/b.txt/download")
	require.NoError(t, err)
	body, err := io.ReadAll(dlResp.Body)
	dlResp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, dlResp.StatusCode)
	assert.Equal(t, "bbb", string(body))

	// A folder token does not unlock single-file access routes.
	token := strings.TrimPrefix(shareData.URL, "/api/v1/access/folder/")
	fileResp, err := anon.Get(env.ts.URL + "/api/v1/access/file/" + token)
	require.NoError(t, err)
	fileResp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, fileResp.StatusCode)
}

func TestEncryptedDownloadRequiresOptIn(t *testing.T) {
	env := newAPIEnv(t)
	env.signUpAndLogin(t, "alice", "hunter22")
	env.createFolder(t, "docs")

	resp, _ := env.request(t, http.MethodPost, "/api/v1/account/encryption/on", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	p := env.upload(t, "docs", "secret.txt", "classified")
	storedName := uploadedFilename(t, p)
	require.Equal(t, "encrypted_secret.txt", storedName)

	// With encryption switched off the stored copy is refused.
	resp, _ = env.request(t, http.MethodPost, "/api/v1/account/encryption/off", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, p2 := env.request(t, http.MethodGet, "/api/v1/folders/docs/files/"+storedName+"/download", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "AUTHORIZATION_ERROR", p2.Code)

	// Opting back in restores access and transparent decryption.
	resp, _ = env.request(t, http.MethodPost, "/api/v1/account/encryption/on", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/v1/folders/docs/files/"+storedName+"/download", nil)
	require.NoError(t, err)
	dlResp, err := env.client.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(dlResp.Body)
	dlResp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, dlResp.StatusCode)
	assert.Equal(t, "classified", string(body))
	assert.Contains(t, dlResp.Header.Get("Content-Disposition"), `"secret.txt"`)
}

func TestProgressEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	env.signUpAndLogin(t, "alice", "hunter22")
	env.createFolder(t, "docs")

	p := env.upload(t, "docs", "report.pdf", "contents")
	var data struct {
		OperationID string `json:"operation_id"`
	}
	require.NoError(t, json.Unmarshal(p.Data, &data))

	resp, p2 := env.request(t, http.MethodGet, "/api/v1/progress/"+data.OperationID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var progressData struct {
		OperationID string        `json:"operation_id"`
		Progress    progress.Info `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(p2.Data, &progressData))
	assert.Equal(t, data.OperationID, progressData.OperationID)
	assert.Equal(t, 100, progressData.Progress.Progress)
	assert.Equal(t, progress.StatusCompleted, progressData.Progress.Status)

	// Unknown ids answer with an empty record, not an error.
	resp, _ = env.request(t, http.MethodGet, "/api/v1/progress/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatsAndStoreStatus(t *testing.T) {
	env := newAPIEnv(t)
	env.signUpAndLogin(t, "alice", "hunter22")
	env.createFolder(t, "docs")
	env.upload(t, "docs", "report.pdf", "twelve bytes")

	resp, p := env.request(t, http.MethodGet, "/api/v1/stats/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats struct {
		TotalFiles        int64            `json:"total_files"`
		TotalFolders      int64            `json:"total_folders"`
		TotalSpaceUsed    string           `json:"total_space_used"`
		SpaceUsedByFolder map[string]int64 `json:"space_used_for_folder"`
	}
	require.NoError(t, json.Unmarshal(p.Data, &stats))
	assert.EqualValues(t, 1, stats.TotalFiles)
	assert.EqualValues(t, 1, stats.TotalFolders)
	assert.EqualValues(t, 12, stats.SpaceUsedByFolder["docs"])

	resp, p = env.request(t, http.MethodGet, "/api/v1/store/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status struct {
		Authorized bool `json:"authorized"`
	}
	require.NoError(t, json.Unmarshal(p.Data, &status))
	assert.True(t, status.Authorized)
}

func TestWebsocketProgress(t *testing.T) {
	env := newAPIEnv(t)
	token := env.signUpAndLogin(t, "alice", "hunter22")

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/v1/ws/progress?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(message))
}

func TestWebsocketRejectsBadToken(t *testing.T) {
	env := newAPIEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/v1/ws/progress?token=garbage"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "the upgrade succeeds; rejection arrives as a close frame")
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, 4001, closeErr.Code)
}
