package downloads

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hferret/shelfarr/internal/clients"
	"github.com/hferret/shelfarr/internal/models"
	"github.com/hferret/shelfarr/internal/testutil"
)

func newTestClientService(t *testing.T) (*ClientService, *testutil.MockDownloadClientRepository) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	repo := &testutil.MockDownloadClientRepository{}
	return NewClientService(repo, clients.NewFactory(logger), nil, logger), repo
}

func healthyDef(id int64) *models.DownloadClientDefinition {
	return &models.DownloadClientDefinition{
		ID:         id,
		Name:       "qbit",
		ClientType: models.ClientTypeQBittorrent,
		Enabled:    true,
		Host:       "localhost",
		Port:       8080,
		Status:     models.ClientStatusHealthy,
	}
}

func TestRecordResult_SingleFailureIsUnhealthy(t *testing.T) {
	service, repo := newTestClientService(t)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	def := healthyDef(1)
	err := service.RecordResult(context.Background(), def, errors.New("connection refused"))
	require.NoError(t, err)

	// One failed connectivity check is enough; there is no grace ladder.
	assert.Equal(t, models.ClientStatusUnhealthy, def.Status)
	assert.Equal(t, 1, def.ErrorCount)
	require.NotNil(t, def.ErrorMessage)
	assert.Equal(t, "connection refused", *def.ErrorMessage)
	assert.NotNil(t, def.LastCheckedAt)
	repo.AssertCalled(t, "Update", mock.Anything, def)
}

func TestRecordResult_RepeatedFailuresAccumulate(t *testing.T) {
	service, repo := newTestClientService(t)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	def := healthyDef(1)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, service.RecordResult(ctx, def, errors.New("timeout")))
		assert.Equal(t, models.ClientStatusUnhealthy, def.Status)
		assert.Equal(t, i, def.ErrorCount)
	}
}

func TestRecordResult_SuccessResets(t *testing.T) {
	service, repo := newTestClientService(t)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	msg := "timeout"
	def := healthyDef(1)
	def.Status = models.ClientStatusUnhealthy
	def.ErrorCount = 4
	def.ErrorMessage = &msg

	require.NoError(t, service.RecordResult(context.Background(), def, nil))

	assert.Equal(t, models.ClientStatusHealthy, def.Status)
	assert.Equal(t, 0, def.ErrorCount)
	assert.Nil(t, def.ErrorMessage)
	assert.NotNil(t, def.LastSuccessfulConnectionAt)
	assert.NotNil(t, def.LastCheckedAt)
}

func TestRecordResult_DisabledOverridesOutcome(t *testing.T) {
	service, repo := newTestClientService(t)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	def := healthyDef(1)
	def.Enabled = false

	require.NoError(t, service.RecordResult(context.Background(), def, nil))
	assert.Equal(t, models.ClientStatusDisabled, def.Status)

	require.NoError(t, service.RecordResult(context.Background(), def, errors.New("down")))
	assert.Equal(t, models.ClientStatusDisabled, def.Status)
}

func qbitServerDef(t *testing.T, server *httptest.Server, id int64, name string) *models.DownloadClientDefinition {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	user := "admin"
	pass := "adminadmin"
	def := healthyDef(id)
	def.Name = name
	def.Host = u.Hostname()
	def.Port = port
	def.Username = &user
	def.Password = &pass
	return def
}

func qbitServer(t *testing.T, torrentsJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "SID", Value: "session"})
		w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/torrents/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(torrentsJSON))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// One failing client must not stop the sweep: its neighbours still commit
// their batches, and only the failing client's health takes the hit.
func TestCheckDownloads_FailingClientIsIsolated(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	serverA := qbitServer(t, `[{"hash":"aaa1","name":"Dune","state":"downloading","progress":50,"size":1024,"downloaded":512,"dlspeed":100,"eta":5,"content_path":"/dl/Dune"}]`)
	serverC := qbitServer(t, `[{"hash":"ccc3","name":"Dune Messiah","state":"pausedUP","progress":100,"size":2048,"downloaded":2048,"dlspeed":0,"eta":0,"content_path":"/dl/Dune Messiah"}]`)

	// The middle client rejects the login, so its item fetch errors out.
	muxB := http.NewServeMux()
	muxB.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Fails."))
	})
	serverB := httptest.NewServer(muxB)
	defer serverB.Close()

	defA := qbitServerDef(t, serverA, 1, "a")
	defB := qbitServerDef(t, serverB, 2, "b")
	defC := qbitServerDef(t, serverC, 3, "c")

	clientRepo := &testutil.MockDownloadClientRepository{}
	clientRepo.On("List", mock.Anything, true).
		Return([]*models.DownloadClientDefinition{defA, defB, defC}, nil)
	clientRepo.On("Update", mock.Anything, mock.Anything).Return(nil)

	itemA := &models.DownloadItem{ID: 11, BookID: 10, ClientID: 1, ClientItemID: "AAA1", Title: "Dune", Status: models.DownloadItemStatusQueued}
	itemC := &models.DownloadItem{ID: 33, BookID: 30, ClientID: 3, ClientItemID: "CCC3", Title: "Dune Messiah", Status: models.DownloadItemStatusDownloading}

	itemRepo := &testutil.MockDownloadItemRepository{}
	itemRepo.On("ListActive", mock.Anything, &defA.ID).Return([]*models.DownloadItem{itemA}, nil)
	itemRepo.On("ListActive", mock.Anything, &defC.ID).Return([]*models.DownloadItem{itemC}, nil)

	var batches [][]*models.DownloadItem
	itemRepo.On("UpdateItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			batches = append(batches, args.Get(1).([]*models.DownloadItem))
		}).
		Return(nil)

	book := &models.TrackedBook{ID: 10, Title: "Dune", Status: models.TrackedBookStatusWanted}
	bookRepo := &testutil.MockTrackedBookRepository{}
	bookRepo.On("GetByID", mock.Anything, int64(10)).Return(book, nil)
	bookRepo.On("Update", mock.Anything, book).Return(nil)

	events := &testutil.CapturingPublisher{}
	monitor := &Monitor{
		itemRepo:      itemRepo,
		bookRepo:      bookRepo,
		clientService: NewClientService(clientRepo, clients.NewFactory(logger), nil, logger),
		events:        events,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}

	monitor.CheckDownloads(context.Background())

	// Clients 1 and 3 each committed their batch despite client 2 failing.
	require.Len(t, batches, 2)
	assert.Equal(t, models.DownloadItemStatusDownloading, itemA.Status)
	assert.Equal(t, float64(50), itemA.Progress)
	assert.Equal(t, models.DownloadItemStatusCompleted, itemC.Status)
	assert.NotNil(t, itemC.CompletedAt)

	// The failing client alone ends the sweep unhealthy, error count up by 1.
	assert.Equal(t, models.ClientStatusUnhealthy, defB.Status)
	assert.Equal(t, 1, defB.ErrorCount)
	assert.Equal(t, models.ClientStatusHealthy, defA.Status)
	assert.Equal(t, models.ClientStatusHealthy, defC.Status)

	// Item 11 moved its book to downloading; item 33's completion is left to
	// the import path, so only one book event fires.
	assert.Equal(t, models.TrackedBookStatusDownloading, book.Status)
	assert.Contains(t, events.EventNames(), EventBookUpdated)

	itemRepo.AssertNotCalled(t, "ListActive", mock.Anything, &defB.ID)
}
