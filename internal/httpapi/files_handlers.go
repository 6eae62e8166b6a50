package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"leadboard-engine/internal/domain"
	"leadboard-engine/internal/ingest/csvimport"
	"leadboard-engine/internal/repo"
	"leadboard-engine/internal/view"
)

const maxImportBytes = 10 << 20

type FilesHandler struct {
	Repo   *repo.Repository
	CfgVal *atomic.Value // stores config.Config
	Now    func() time.Time
	Log    *zap.Logger
}

// Import accepts a CSV or XLSX file, either as the raw body or as the "file"
// part of a multipart form. The optional column mapping comes from the
// "mapping" query parameter or form field as a JSON object of
// {fileHeader: leadField}; "sheet" picks the worksheet of an XLSX file.
func (h FilesHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, fields, err := readUpload(w, r)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_file", err.Error())
		return
	}

	opts := csvimport.Options{Now: h.Now()}
	if raw := first(fields["mapping"], r.URL.Query().Get("mapping")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts.Mapping); err != nil {
			WriteError(w, r, http.StatusBadRequest, "bad_request", "mapping: "+err.Error())
			return
		}
	}
	sheet := first(fields["sheet"], r.URL.Query().Get("sheet"))

	parsed, err := csvimport.Sniff(data, sheet, opts)
	switch {
	case errors.Is(err, csvimport.ErrNoRows):
		WriteError(w, r, http.StatusBadRequest, "no_rows", err.Error())
		return
	case err != nil:
		WriteError(w, r, http.StatusBadRequest, "invalid_file", err.Error())
		return
	}

	imported, err := h.Repo.Import(r.Context(), parsed)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	ids := make([]string, len(imported))
	for i, l := range imported {
		ids[i] = l.ID
	}
	h.Log.Info("import finished",
		zap.String("request_id", RequestIDFrom(r.Context())),
		zap.Int("leads", len(imported)),
		zap.Int("bytes", len(data)),
	)
	writeJSON(w, map[string]any{"ok": true, "imported": len(imported), "ids": ids})
}

// Export writes the filtered, sorted table as CSV (default) or XLSX.
func (h FilesHandler) Export(w http.ResponseWriter, r *http.Request) {
	now := h.Now()
	q, err := parseQuery(r.URL.Query(), now)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	rows := view.Filter(deriverFor(h.CfgVal).Rows(h.Repo.List(r.Context()), now), q.Filters)
	view.Sort(rows, q.Sort)

	leads := make([]domain.Lead, len(rows))
	for i, row := range rows {
		leads[i] = row.Lead
	}

	stamp := now.Format("20060102-150405")
	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="leads-%s.csv"`, stamp))
		if err := csvimport.WriteCSV(w, leads); err != nil {
			h.Log.Warn("csv export failed", zap.Error(err))
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="leads-%s.xlsx"`, stamp))
		if err := csvimport.WriteXLSX(w, leads); err != nil {
			h.Log.Warn("xlsx export failed", zap.Error(err))
		}
	default:
		WriteError(w, r, http.StatusBadRequest, "bad_request", "format must be csv or xlsx")
	}
}

// readUpload returns the file bytes and any plain form fields.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	fields := map[string]string{}

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, nil, err
		}
		if len(data) == 0 {
			return nil, nil, errors.New("empty body")
		}
		return data, fields, nil
	}

	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		return nil, nil, err
	}
	for k, vs := range r.MultipartForm.Value {
		if len(vs) > 0 {
			fields[k] = vs[0]
		}
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("file: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	return data, fields, nil
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
