package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"subtracker/internal/core"

	ports "subtracker/internal/sheets"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ ports.SubscriptionWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_SHEET_NAME (default "Subscriptions")
// Auth: OAuth client+token (GOOGLE_OAUTH_CLIENT_JSON/FILE plus
// GOOGLE_OAUTH_TOKEN_JSON/FILE, see the oauth-init command), or a service
// account via GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Subscriptions"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service, preferring OAuth user
// credentials and falling back to a service account.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	if svc, err, ok := newOAuthService(ctx); ok {
		return svc, err
	}
	return newServiceAccountService(ctx)
}

func newOAuthService(ctx context.Context) (*gsheet.Service, error, bool) {
	clientJSON := readEnvOrFile("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	tokenJSON := readEnvOrFile("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if clientJSON == nil || tokenJSON == nil {
		return nil, nil, false
	}

	cfg, err := oauthgoogle.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err), true
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err), true
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with OAuth credentials")
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(cfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err), true
	}
	return svc, nil, true
}

func newServiceAccountService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON := readEnvOrFile("GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE")
	if credentialsJSON == nil {
		if path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); path != "" {
			b, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read service account file: %w", err)
			}
			credentialsJSON = b
		}
	}
	if credentialsJSON == nil {
		return nil, errors.New("missing credentials (set GOOGLE_OAUTH_* or GOOGLE_SERVICE_ACCOUNT_* variables)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// readEnvOrFile returns inline JSON from jsonKey, or the contents of the file
// named by fileKey, or nil when neither is set.
func readEnvOrFile(jsonKey, fileKey string) []byte {
	if inline := strings.TrimSpace(os.Getenv(jsonKey)); inline != "" {
		return []byte(inline)
	}
	if path := strings.TrimSpace(os.Getenv(fileKey)); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("Failed to read credentials file", "path", path, "error", err)
			return nil
		}
		return b
	}
	return nil
}

// subscriptionRow lays a subscription out across columns A:I.
func subscriptionRow(userID string, sub core.Subscription) []any {
	nextPayment := ""
	if !sub.NextPaymentDate.IsZero() {
		nextPayment = sub.NextPaymentDate.Format("2006-01-02")
	}
	return []any{
		sub.ID,
		userID,
		sub.Name,
		sub.Amount.Float(),
		string(sub.Cycle),
		sub.Category,
		string(sub.Status),
		nextPayment,
		sub.IsTrial,
	}
}

// findRowByID returns the 1-based sheet row holding the given subscription ID
// in column A, or 0 when absent.
func findRowByID(rows [][]any, id string) int {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

// Upsert writes the subscription into the sheet, updating the existing row
// for the same ID or appending a new one.
func (c *Client) Upsert(ctx context.Context, userID string, sub core.Subscription) (string, error) {
	if err := sub.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	// Scan the ID column to find the row to update
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to read IDs from %s: %w", c.sheetName, err)
	}

	row := findRowByID(resp.Values, sub.ID)
	if row == 0 {
		row = len(resp.Values) + 1
	}

	dataRange := fmt.Sprintf("%s!A%d:I%d", c.sheetName, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{subscriptionRow(userID, sub)}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", dataRange, err)
	}

	slog.InfoContext(ctx, "Subscription written to sheet",
		"id", sub.ID,
		"sheets_ref", dataRange,
		"written_at", time.Now().Format(time.RFC3339))

	return dataRange, nil
}
