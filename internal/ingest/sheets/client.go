// Package sheets reads and writes the leads worksheet through the Google
// Sheets v4 API, authenticating with an OAuth refresh token.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"leadboard-engine/internal/config"
)

var (
	ErrRowNotFound   = errors.New("sheets: row not found")
	ErrSheetNotFound = errors.New("sheets: worksheet not found")
	ErrNoCredentials = errors.New("sheets: missing spreadsheet id or oauth credentials")
)

type Config struct {
	SpreadsheetID     string
	SheetName         string
	Columns           string // A1 column span, e.g. "A:ZZ"
	IDColumn          string
	Endpoint          string
	TokenURL          string
	ClientID          string
	RequestsPerMinute int
	Timeout           time.Duration
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		SpreadsheetID:     cfg.Sheets.SpreadsheetID,
		SheetName:         cfg.Sheets.SheetName,
		Columns:           cfg.Sheets.Columns,
		IDColumn:          cfg.Sheets.IDColumn,
		Endpoint:          cfg.Sheets.Endpoint,
		TokenURL:          cfg.OAuth.TokenURL,
		ClientID:          cfg.OAuth.ClientID,
		RequestsPerMinute: cfg.Sheets.RequestsPerMinute,
		Timeout:           cfg.SheetsTimeout(),
	}
}

// Credentials are the secret half of the OAuth client.
type Credentials struct {
	ClientSecret string
	RefreshToken string
}

type Client struct {
	cfg Config
	svc *gsheets.Service
	log *zap.Logger

	mu      sync.Mutex
	sheetID *int64
}

// New builds a client. The access token is cached and refreshed lazily; the
// reuse token source serializes refreshes so concurrent callers share one
// exchange. Extra options are appended after the defaults (tests pass their
// own endpoint or HTTP client this way).
func New(ctx context.Context, cfg Config, creds Credentials, log *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	if cfg.SpreadsheetID == "" || cfg.ClientID == "" || creds.RefreshToken == "" {
		return nil, ErrNoCredentials
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Columns == "" {
		cfg.Columns = "A:ZZ"
	}
	if cfg.IDColumn == "" {
		cfg.IDColumn = "A"
	}

	limiter := NewHostLimiter(cfg.RequestsPerMinute)
	base := &http.Client{Transport: limiter.Transport(nil), Timeout: cfg.Timeout}

	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: cfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams}
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{gsheets.SpreadsheetsScope},
	}
	// Token exchange goes through the same limited client.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	ts := oc.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: creds.RefreshToken})

	hc := &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: base.Transport},
		Timeout:   cfg.Timeout,
	}
	all := []option.ClientOption{option.WithHTTPClient(hc)}
	if cfg.Endpoint != "" {
		all = append(all, option.WithEndpoint(cfg.Endpoint))
	}
	all = append(all, opts...)

	svc, err := gsheets.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{cfg: cfg, svc: svc, log: log}, nil
}

// FetchRows returns every row of the configured span, header row first, with
// cells rendered as strings.
func (c *Client) FetchRows(ctx context.Context) ([][]string, error) {
	rng := a1(c.cfg.SheetName, c.cfg.Columns)
	start := time.Now()
	vr, err := c.svc.Spreadsheets.Values.Get(c.cfg.SpreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rng, err)
	}
	rows := make([][]string, len(vr.Values))
	for i, r := range vr.Values {
		rows[i] = make([]string, len(r))
		for j, cell := range r {
			rows[i][j] = CellString(cell)
		}
	}
	c.log.Debug("sheet fetched",
		zap.String("range", rng),
		zap.Int("rows", len(rows)),
		zap.Duration("took", time.Since(start)),
	)
	return rows, nil
}

// FindRow scans the id column below the header and returns the 1-based sheet
// row holding id.
func (c *Client) FindRow(ctx context.Context, id string) (int, error) {
	col := strings.ToUpper(c.cfg.IDColumn)
	rng := a1(c.cfg.SheetName, col+":"+col)
	vr, err := c.svc.Spreadsheets.Values.Get(c.cfg.SpreadsheetID, rng).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", rng, err)
	}
	for i := 1; i < len(vr.Values); i++ {
		r := vr.Values[i]
		if len(r) > 0 && CellString(r[0]) == id {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrRowNotFound, id)
}

// UpdateRow overwrites one row starting at the first configured column.
func (c *Client) UpdateRow(ctx context.Context, row int, values []any) error {
	first, last := c.span()
	rng := a1(c.cfg.SheetName, fmt.Sprintf("%s%d:%s%d", first, row, last, row))
	_, err := c.svc.Spreadsheets.Values.Update(c.cfg.SpreadsheetID, rng, &gsheets.ValueRange{
		Values: [][]interface{}{values},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	c.log.Info("sheet row updated", zap.Int("row", row))
	return nil
}

// AppendRow inserts values as a new row after the last data row.
func (c *Client) AppendRow(ctx context.Context, values []any) error {
	return c.AppendRows(ctx, [][]any{values})
}

func (c *Client) AppendRows(ctx context.Context, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	rng := a1(c.cfg.SheetName, c.cfg.Columns)
	vals := make([][]interface{}, len(rows))
	for i, r := range rows {
		vals[i] = r
	}
	_, err := c.svc.Spreadsheets.Values.Append(c.cfg.SpreadsheetID, rng, &gsheets.ValueRange{
		Values: vals,
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	c.log.Info("sheet rows appended", zap.Int("rows", len(rows)))
	return nil
}

// DeleteRow removes the 1-based sheet row, shifting the rows below it up.
func (c *Client) DeleteRow(ctx context.Context, row int) error {
	sid, err := c.SheetID(ctx)
	if err != nil {
		return err
	}
	return c.deleteRow(ctx, sid, row)
}

// DeleteLead locates the row of id and deletes it. The row scan and the
// worksheet id lookup run concurrently.
func (c *Client) DeleteLead(ctx context.Context, id string) error {
	var (
		row int
		sid int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		row, err = c.FindRow(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		sid, err = c.SheetID(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return c.deleteRow(ctx, sid, row)
}

func (c *Client) deleteRow(ctx context.Context, sid int64, row int) error {
	if row < 2 {
		return fmt.Errorf("delete row %d: header row is protected", row)
	}
	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			DeleteDimension: &gsheets.DeleteDimensionRequest{
				Range: &gsheets.DimensionRange{
					SheetId:         sid,
					Dimension:       "ROWS",
					StartIndex:      int64(row - 1),
					EndIndex:        int64(row),
					ForceSendFields: []string{"SheetId"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.cfg.SpreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d: %w", row, err)
	}
	c.log.Info("sheet row deleted", zap.Int("row", row))
	return nil
}

// SheetID resolves the numeric id of the configured worksheet by title. The
// result is cached for the life of the client.
func (c *Client) SheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	if c.sheetID != nil {
		id := *c.sheetID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	ss, err := c.svc.Spreadsheets.Get(c.cfg.SpreadsheetID).
		Fields(googleapi.Field("sheets.properties")).
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("spreadsheet metadata: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.cfg.SheetName {
			id := sh.Properties.SheetId
			c.mu.Lock()
			c.sheetID = &id
			c.mu.Unlock()
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrSheetNotFound, c.cfg.SheetName)
}

func (c *Client) span() (string, string) {
	first, last, ok := strings.Cut(strings.ToUpper(c.cfg.Columns), ":")
	if !ok || first == "" || last == "" {
		return "A", "ZZ"
	}
	return first, last
}

// a1 quotes the sheet title for A1 notation.
func a1(sheet, rng string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + rng
}

// CellString renders an unformatted cell value the way the sheet shows it.
func CellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(t)
	}
}

// StatusCode extracts the HTTP status of an API failure, 0 when err did not
// come from the API.
func StatusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}
