package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"minhasfinancas/internal/core"
	"minhasfinancas/internal/log"
	ports "minhasfinancas/internal/sheets"
)

const lastColumn = "I"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// Ensure interface conformance
var _ ports.EntryMirror = (*Client)(nil)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON []byte
}

// New creates a Sheets client authenticated as a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if len(cfg.CredentialsJSON) == 0 {
		return nil, errors.New("missing service account credentials")
	}

	creds, err := googleoauth.CredentialsFromJSON(ctx, cfg.CredentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("service account credentials: %w", err)
	}

	// oauth2 picks the base transport from the context.
	baseCtx := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	httpClient := oauth2.NewClient(baseCtx, creds.TokenSource)

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an already configured service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Lancamentos"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        log.Default().WithComponent(log.ComponentSheets),
	}
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// UpsertEntry rewrites the row whose column A holds the entry id, or appends
// one below the last used row. An empty sheet gets the header first.
func (c *Client) UpsertEntry(ctx context.Context, l core.Lancamento) error {
	if l.ID == 0 {
		return core.ErrMissingID
	}
	values, err := c.readIDs(ctx)
	if err != nil {
		return err
	}

	row := findRow(values, l.ID)
	if row == 0 {
		if len(values) == 0 {
			if err := c.writeRow(ctx, 1, headerRow()); err != nil {
				return fmt.Errorf("write header: %w", err)
			}
			values = [][]any{{ports.Header[0]}}
		}
		row = len(values) + 1
	}

	if err := c.writeRow(ctx, row, entryRow(l)); err != nil {
		return fmt.Errorf("write entry %d: %w", l.ID, err)
	}
	c.logger.DebugContext(ctx, "Entry row written", log.FieldEntryID, l.ID, "row", row)
	return nil
}

// ClearEntry blanks the row of the entry and leaves the slot in place, so
// row numbers of other entries stay stable.
func (c *Client) ClearEntry(ctx context.Context, id int64) error {
	values, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	row := findRow(values, id)
	if row == 0 {
		c.logger.DebugContext(ctx, "No row to clear", log.FieldEntryID, id)
		return nil
	}

	rng := c.rowRange(row)
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

func (c *Client) readIDs(ctx context.Context) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// writeRow uses RAW input so descriptions are never evaluated as formulas.
func (c *Client) writeRow(ctx context.Context, row int, values []any) error {
	rng := c.rowRange(row)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (c *Client) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", c.sheetName, row, lastColumn, row)
}

// findRow returns the 1-based row whose first cell is id, or 0.
func findRow(values [][]any, id int64) int {
	want := strconv.FormatInt(id, 10)
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == want {
			return i + 1
		}
	}
	return 0
}

func headerRow() []any {
	out := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		out[i] = h
	}
	return out
}

// entryRow lays an entry out in Header order.
func entryRow(l core.Lancamento) []any {
	dataCadastro := ""
	if !l.DataCadastro.IsZero() {
		dataCadastro = l.DataCadastro.Format("2006-01-02")
	}
	return []any{
		strconv.FormatInt(l.ID, 10),
		l.Descricao,
		l.Mes,
		l.Ano,
		l.Valor.InexactFloat64(),
		string(l.Tipo),
		string(l.Status),
		l.UsuarioID(),
		dataCadastro,
	}
}
