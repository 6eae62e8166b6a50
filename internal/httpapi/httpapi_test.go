package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"leadboard-engine/internal/config"
	"leadboard-engine/internal/domain"
	"leadboard-engine/internal/events"
	"leadboard-engine/internal/ingest/csvimport"
	"leadboard-engine/internal/ingest/sheets"
	"leadboard-engine/internal/poll"
	"leadboard-engine/internal/repo"
	"leadboard-engine/internal/secrets"
	"leadboard-engine/internal/store"
)

var testNow = time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

type sheetFake struct {
	mu      sync.Mutex
	rows    [][]string
	updated map[int][]any
}

func (f *sheetFake) FetchRows(context.Context) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows, nil
}

func (f *sheetFake) FindRow(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 1; i < len(f.rows); i++ {
		if f.rows[i][0] == id {
			return i + 1, nil
		}
	}
	return 0, sheets.ErrRowNotFound
}

func (f *sheetFake) UpdateRow(_ context.Context, row int, values []any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updated == nil {
		f.updated = map[int][]any{}
	}
	f.updated[row] = values
	return nil
}

func (f *sheetFake) AppendRows(context.Context, [][]any) error { return nil }
func (f *sheetFake) DeleteLead(context.Context, string) error  { return nil }

type testEnv struct {
	srv     *httptest.Server
	src     *sheetFake
	syncer  *poll.Syncer
	hub     *events.Hub
	cfgPath string
	oauth   map[string]secrets.OAuth
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zaptest.NewLogger(t)

	src := &sheetFake{rows: [][]string{
		{"ID", "Full Name", "Email", "Phone", "Status", "Stage", "Source", "Center", "Created At", "Follow Up 1 Date"},
		{"L-1", "Asha Rao", "asha@example.com", "98450", "Warm", "Initial Contact", "Instagram", "HSR", "2024-05-14", ""},
		{"L-2", "Bala", "", "", "Hot", "Trial Scheduled", "Walk-in", "Koramangala", "2024-05-01", "2024-05-02"},
		{"L-3", "Chitra", "chitra@example.com", "", "Converted", "Membership Sold", "Instagram", "HSR", "2024-04-02", ""},
	}}

	db, err := store.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db.Pool))
	t.Cleanup(func() { _ = db.Close() })

	r := repo.New(src, store.NewSQLiteSnapshots(db.Pool), repo.Options{
		Freshness: 5 * time.Minute,
		Mode:      config.ModeCacheOnly,
		Now:       func() time.Time { return testNow },
		Sleep:     func(context.Context, time.Duration) error { return nil },
	}, log)
	hub := events.NewHub()
	r.OnChange(PublishChanges(hub))

	dir := t.TempDir()
	cfgPath, err := config.EnsureUserConfig(dir)
	require.NoError(t, err)
	var cfgVal atomic.Value
	cfgVal.Store(config.Default())

	env := &testEnv{
		src:     src,
		syncer:  poll.NewSyncer(r, db.Pool, log),
		hub:     hub,
		cfgPath: cfgPath,
		oauth:   map[string]secrets.OAuth{},
	}
	var oauthMu sync.Mutex
	mux := NewMux(Deps{
		Repo:        r,
		Syncer:      env.syncer,
		DB:          db.Pool,
		Hub:         hub,
		Log:         log,
		CfgVal:      &cfgVal,
		UserCfgPath: cfgPath,
		LoadCfg:     func() (config.Config, error) { return config.Load(cfgPath) },
		SetOAuth: func(account string, o secrets.OAuth) error {
			oauthMu.Lock()
			defer oauthMu.Unlock()
			env.oauth[account] = o
			return nil
		},
		DeleteOAuth: func(account string) error {
			oauthMu.Lock()
			defer oauthMu.Unlock()
			delete(env.oauth, account)
			return nil
		},
		Now: func() time.Time { return testNow },
	})
	env.srv = httptest.NewServer(Handler(mux, log))
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type tableResp struct {
	Groups []struct {
		Key   string           `json:"key"`
		Count int              `json:"count"`
		Share int              `json:"share"`
		Leads []map[string]any `json:"leads"`
	} `json:"groups"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Pages    int `json:"pages"`
}

func leadIDs(leads []map[string]any) []string {
	out := make([]string, len(leads))
	for i, l := range leads {
		out[i], _ = l["id"].(string)
	}
	return out
}

func TestHealth(t *testing.T) {
	env := newEnv(t)
	resp := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	body := decode[map[string]any](t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, config.ModeCacheOnly, body["mode"])
}

func TestListLeads(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodGet, "/leads?sort=score&dir=desc&pageSize=2", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sheet", resp.Header.Get("X-Leads-Origin"))
	tbl := decode[tableResp](t, resp)
	assert.Equal(t, 3, tbl.Total)
	assert.Equal(t, 2, tbl.Pages)
	require.Len(t, tbl.Groups, 1)
	require.Len(t, tbl.Groups[0].Leads, 2)

	top := tbl.Groups[0].Leads[0]
	assert.Contains(t, top, "score")
	assert.Contains(t, top, "followUp")
	assert.Contains(t, top, "open")
	assert.Equal(t, "", top["followUp4Date"])
}

func TestListLeadsGroupedAndFiltered(t *testing.T) {
	env := newEnv(t)

	tbl := decode[tableResp](t, env.do(t, http.MethodGet, "/leads?group=center&source=Instagram", nil, ""))
	require.Len(t, tbl.Groups, 1)
	assert.Equal(t, "HSR", tbl.Groups[0].Key)
	assert.Equal(t, 100, tbl.Groups[0].Share)
	assert.Equal(t, []string{"L-1", "L-3"}, leadIDs(tbl.Groups[0].Leads))

	tbl = decode[tableResp](t, env.do(t, http.MethodGet, "/leads?preset=thisMonth", nil, ""))
	assert.Equal(t, 2, tbl.Total)

	tbl = decode[tableResp](t, env.do(t, http.MethodGet, "/leads?q=chitra&status=Converted,Hot", nil, ""))
	assert.Equal(t, 1, tbl.Total)

	tbl = decode[tableResp](t, env.do(t, http.MethodGet, "/leads?from=2024-05-01&to=2024-05-01", nil, ""))
	assert.Equal(t, []string{"L-2"}, leadIDs(tbl.Groups[0].Leads))
}

func TestListLeadsBadQuery(t *testing.T) {
	env := newEnv(t)
	for _, q := range []string{"preset=fortnight", "dir=sideways", "page=-1", "from=May"} {
		resp := env.do(t, http.MethodGet, "/leads?"+q, nil, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		var e APIError
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
		assert.Equal(t, "bad_request", e.Error.Code)
	}
}

func TestGetLead(t *testing.T) {
	env := newEnv(t)

	body := decode[map[string]any](t, env.do(t, http.MethodGet, "/leads/L-1", nil, ""))
	assert.Equal(t, "Asha Rao", body["fullName"])
	// name, email, phone (30) + Warm (15) + Initial Contact (10)
	assert.Equal(t, float64(55), body["score"])

	resp := env.do(t, http.MethodGet, "/leads/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	e := decode[APIError](t, resp)
	assert.Equal(t, "not_found", e.Error.Code)
	assert.NotEmpty(t, e.Error.RequestID)
}

func TestCreateLead(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodPost, "/leads", strings.NewReader(`{"fullName":"Nina","email":"nina@example.com","budget":"5000"}`), "application/json")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.True(t, strings.HasPrefix(body["id"].(string), "lead-"))
	assert.Equal(t, "Other", body["source"])
	assert.Equal(t, "2024-05-15", body["createdAt"])
	assert.Equal(t, "5000", body["budget"])

	tbl := decode[tableResp](t, env.do(t, http.MethodGet, "/leads", nil, ""))
	assert.Equal(t, 4, tbl.Total)

	resp = env.do(t, http.MethodPost, "/leads", strings.NewReader(`{"id":"L-1"}`), "application/json")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/leads", strings.NewReader(`{"fullName":`), "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateLead(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodPut, "/leads/L-1", strings.NewReader(`{"status":"Hot","followUp1Date":"2024-05-15","id":"ignored"}`), "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "L-1", body["id"])
	assert.Equal(t, "Hot", body["status"])
	assert.Equal(t, "asha@example.com", body["email"], "absent keys keep their value")

	env.src.mu.Lock()
	row := env.src.updated[2]
	env.src.mu.Unlock()
	require.NotNil(t, row)
	assert.Equal(t, "L-1", row[0])
	assert.Equal(t, "2024-05-15", row[12])

	resp = env.do(t, http.MethodPut, "/leads/L-1", strings.NewReader(`{"status":{"nested":true}}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/leads/L-9", strings.NewReader(`{}`), "application/json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateLeadNullRestoresDefaults(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodPut, "/leads/L-1",
		strings.NewReader(`{"fullName":null,"source":null,"status":null,"stage":null,"createdAt":null,"remarks":null}`),
		"application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, domain.DefaultName, body["fullName"])
	assert.Equal(t, domain.DefaultSource, body["source"])
	assert.Equal(t, domain.DefaultStatus, body["status"])
	assert.Equal(t, domain.DefaultStage, body["stage"])
	assert.Equal(t, testNow.Format(domain.DateLayout), body["createdAt"])
	assert.Equal(t, "", body["remarks"], "fields without a default are cleared")
}

func TestDeleteLead(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodDelete, "/leads/L-2", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "L-2", decode[map[string]any](t, resp)["id"])

	resp = env.do(t, http.MethodDelete, "/leads/L-2", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestImportCSVBody(t *testing.T) {
	env := newEnv(t)

	doc := "Name,Email,Status\nMeera,meera@example.com,Hot\nRavi,,\n"
	resp := env.do(t, http.MethodPost, "/leads/import", strings.NewReader(doc), "text/csv")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, float64(2), body["imported"])

	tbl := decode[tableResp](t, env.do(t, http.MethodGet, "/leads?q=meera", nil, ""))
	require.Equal(t, 1, tbl.Total)
	assert.Equal(t, "Hot", tbl.Groups[0].Leads[0]["status"])
}

func TestImportWithMapping(t *testing.T) {
	env := newEnv(t)

	doc := "Client,Branch\nMeera,Indiranagar\n"
	mapping := url.QueryEscape(`{"Client":"fullName","Branch":"center"}`)
	resp := env.do(t, http.MethodPost, "/leads/import?mapping="+mapping, strings.NewReader(doc), "text/csv")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tbl := decode[tableResp](t, env.do(t, http.MethodGet, "/leads?center=Indiranagar", nil, ""))
	require.Equal(t, 1, tbl.Total)
	assert.Equal(t, "Meera", tbl.Groups[0].Leads[0]["fullName"])

	resp = env.do(t, http.MethodPost, `/leads/import?mapping=notjson`, strings.NewReader(doc), "text/csv")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImportMultipartXLSX(t *testing.T) {
	env := newEnv(t)

	var file bytes.Buffer
	require.NoError(t, csvimport.WriteXLSX(&file, nil))
	// header-only workbook has no rows to import
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fw, err := mw.CreateFormFile("file", "leads.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(file.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp := env.do(t, http.MethodPost, "/leads/import", &form, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "no_rows", decode[APIError](t, resp).Error.Code)
}

func TestImportRejectsBadInput(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodPost, "/leads/import", strings.NewReader(""), "text/csv")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/leads/import", strings.NewReader("Name\n\"unterminated\n"), "text/csv")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_file", decode[APIError](t, resp).Error.Code)
}

func TestExportRoundTrip(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodGet, "/leads/export?source=Instagram&sort=fullName&dir=desc", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "leads-20240515-100000.csv")

	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvimport.ExportHeaders(), records[0])
	assert.Equal(t, "L-3", records[1][0])

	resp = env.do(t, http.MethodGet, "/leads/export?format=xlsx", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	leads, err := csvimport.Sniff(data, "", csvimport.Options{Now: testNow})
	require.NoError(t, err)
	assert.Len(t, leads, 3)

	resp = env.do(t, http.MethodGet, "/leads/export?format=pdf", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLeadOptions(t *testing.T) {
	env := newEnv(t)
	body := decode[map[string][]string](t, env.do(t, http.MethodGet, "/leads/options", nil, ""))
	assert.Equal(t, []string{"HSR", "Koramangala"}, body["centers"])
	assert.Equal(t, []string{"Instagram", "Walk-in"}, body["sources"])
	assert.Contains(t, body["presets"], "lastWeek")
}

func TestSyncRunAndStatus(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodPost, "/sync/run?wait=1", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(3), stats["mapped"])

	var st struct {
		Sync  poll.Status     `json:"sync"`
		Cache repo.State      `json:"cache"`
		Runs  []store.SyncRun `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(env.do(t, http.MethodGet, "/sync/status", nil, "").Body).Decode(&st))
	assert.Equal(t, poll.TriggerManual, st.Sync.LastTrigger)
	assert.Equal(t, 3, st.Cache.Count)
	assert.Equal(t, repo.OriginSheet, st.Cache.Origin)
	require.Len(t, st.Runs, 1)
	assert.True(t, st.Runs[0].OK)

	resp = env.do(t, http.MethodPost, "/sync/run", nil, "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	env.syncer.Wait()
}

func TestConfigEndpoints(t *testing.T) {
	env := newEnv(t)

	cfg := decode[config.Config](t, env.do(t, http.MethodGet, "/config", nil, ""))
	assert.Equal(t, config.ModeCacheOnly, cfg.Sync.Mode)

	path := decode[map[string]string](t, env.do(t, http.MethodGet, "/config/path", nil, ""))
	assert.Equal(t, env.cfgPath, path["path"])

	vr := decode[config.Validation](t, env.do(t, http.MethodGet, "/config/validate", nil, ""))
	assert.Empty(t, vr.Errors)

	cfg.Scoring.StagePoints["Trial Scheduled"] = 99
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	resp := env.do(t, http.MethodPut, "/config", bytes.NewReader(b), "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, decode[config.Validation](t, resp).Errors)

	cfg.Scoring.StagePoints["Trial Scheduled"] = 30
	b, err = json.Marshal(cfg)
	require.NoError(t, err)
	resp = env.do(t, http.MethodPut, "/config", bytes.NewReader(b), "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	onDisk, err := config.Load(env.cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 30.0, onDisk.Scoring.StagePoints["Trial Scheduled"])
	_, err = os.Stat(env.cfgPath + ".bak")
	assert.NoError(t, err)

	resp = env.do(t, http.MethodPut, "/config", strings.NewReader(`{"Nope":1}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSecretsEndpoint(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodPost, "/api/secrets/oauth", strings.NewReader(`{"client_secret":"s3cret","refresh_token":"1//tok"}`), "application/json")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, secrets.OAuth{ClientSecret: "s3cret", RefreshToken: "1//tok"}, env.oauth["leadboard:oauth"])

	resp = env.do(t, http.MethodDelete, "/api/secrets/oauth", nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, env.oauth)
}

func TestEventsStream(t *testing.T) {
	env := newEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func() events.Event {
		for lines.Scan() {
			if data, ok := strings.CutPrefix(lines.Text(), "data: "); ok {
				var e events.Event
				require.NoError(t, json.Unmarshal([]byte(data), &e))
				return e
			}
		}
		t.Fatal("stream ended")
		return events.Event{}
	}

	assert.Equal(t, events.TypePing, next().Type)
	require.Eventually(t, func() bool { return env.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	env.do(t, http.MethodDelete, "/leads/L-3", nil, "")
	for {
		e := next()
		if e.Type == string(repo.LeadsSynced) {
			continue
		}
		assert.Equal(t, string(repo.LeadDeleted), e.Type)
		var c repo.Change
		require.NoError(t, json.Unmarshal(e.Data, &c))
		assert.Equal(t, []string{"L-3"}, c.IDs)
		break
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newEnv(t)
	resp := env.do(t, http.MethodPatch, "/leads", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "method_not_allowed", decode[APIError](t, resp).Error.Code)
}

func TestCheckpoint(t *testing.T) {
	env := newEnv(t)
	resp := env.do(t, http.MethodPost, "/db/checkpoint", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[store.CheckpointResult](t, resp)
	assert.False(t, res.Busy)
}

func TestCorsPreflight(t *testing.T) {
	env := newEnv(t)
	req, err := http.NewRequest(http.MethodOptions, env.srv.URL+"/leads", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCorsAllowList(t *testing.T) {
	h := Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), zaptest.NewLogger(t), "http://localhost:5173")

	send := func(method, origin string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(method, "/leads", nil)
		req.Header.Set("Origin", origin)
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("listed origin", func(t *testing.T) {
		rec := send(http.MethodOptions, "http://localhost:5173")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("foreign preflight refused", func(t *testing.T) {
		rec := send(http.MethodOptions, "https://evil.example")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		var e APIError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
		assert.Equal(t, "origin_not_allowed", e.Error.Code)
	})

	t.Run("foreign request gets no cors headers", func(t *testing.T) {
		rec := send(http.MethodGet, "https://evil.example")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRequestIDSanitized(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}), RequestID)

	cases := []struct {
		name, in string
		keep     bool
	}{
		{"plain token kept", "req-7.a_b", true},
		{"header injection replaced", "a\r\nX-Evil: 1", false},
		{"too long replaced", strings.Repeat("a", maxRequestIDLen+1), false},
		{"missing generated", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.in != "" {
				req.Header["X-Request-Id"] = []string{tc.in}
			}
			h.ServeHTTP(rec, req)

			assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
			if tc.keep {
				assert.Equal(t, tc.in, seen)
				return
			}
			_, err := uuid.Parse(seen)
			assert.NoError(t, err, "got %q", seen)
		})
	}
}

func TestAccessLogDefaultsStatus(t *testing.T) {
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder()}
	assert.Equal(t, http.StatusOK, sw.Status())
	sw.WriteHeader(http.StatusAccepted)
	sw.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusAccepted, sw.Status())
}

func TestRecoverMiddleware(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RequestID, Recover(zaptest.NewLogger(t)))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-7")
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var e APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "internal_error", e.Error.Code)
	assert.Equal(t, "req-7", e.Error.RequestID)
}
