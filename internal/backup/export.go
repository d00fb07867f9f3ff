package backup

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mkarpov/otpvault/internal/models"
	"github.com/mkarpov/otpvault/internal/vaulterr"
)

// Export formats.
const (
	FormatURI  = "uri"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// utf8BOM marks CSV exports so spreadsheet tools detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Export renders the backup under key in the requested format and
// returns the document plus its content type. Records are sorted by
// name, case-insensitively, in every format.
func (p *Pipeline) Export(ctx context.Context, key string, format string) ([]byte, string, error) {
	payload, err := p.repo.Payload(ctx, key)
	if err != nil {
		return nil, "", err
	}
	if err := validateRecords(payload.Secrets); err != nil {
		return nil, "", err
	}

	secrets := make([]models.SecretRecord, len(payload.Secrets))
	for i, rec := range payload.Secrets {
		secrets[i] = rec.Normalized()
	}
	sort.SliceStable(secrets, func(i, j int) bool {
		return strings.ToLower(secrets[i].Name) < strings.ToLower(secrets[j].Name)
	})

	switch format {
	case FormatURI:
		return exportURI(secrets), "text/plain; charset=utf-8", nil
	case FormatJSON:
		return exportJSON(secrets)
	case FormatCSV:
		return exportCSV(secrets)
	default:
		return nil, "", vaulterr.Newf(vaulterr.KindValidation, "unknown export format %q", format)
	}
}

// exportURI renders one otpauth:// line per record.
func exportURI(secrets []models.SecretRecord) []byte {
	var b strings.Builder
	for _, rec := range secrets {
		b.WriteString(otpauthURI(rec))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func otpauthURI(rec models.SecretRecord) string {
	label := url.PathEscape(rec.Name)
	if rec.Account != "" {
		label += ":" + url.PathEscape(rec.Account)
	}

	params := url.Values{}
	params.Set("secret", rec.Secret)
	params.Set("issuer", rec.Name)
	params.Set("digits", strconv.Itoa(rec.Digits))
	params.Set("algorithm", rec.Algorithm)
	if rec.Type == models.HOTP {
		if rec.Counter != nil {
			params.Set("counter", strconv.FormatInt(*rec.Counter, 10))
		}
	} else {
		params.Set("period", strconv.Itoa(rec.Period))
	}

	return "otpauth://" + string(rec.Type) + "/" + label + "?" + params.Encode()
}

func exportJSON(secrets []models.SecretRecord) ([]byte, string, error) {
	doc, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return nil, "", vaulterr.Wrap(vaulterr.KindValidation, "render json export", err)
	}
	return append(doc, '\n'), "application/json", nil
}

// exportCSV renders a BOM-prefixed, RFC 4180 quoted document with one
// row per record.
func exportCSV(secrets []models.SecretRecord) ([]byte, string, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	header := []string{"name", "account", "secret", "type", "digits", "period", "algorithm", "counter", "created"}
	if err := w.Write(header); err != nil {
		return nil, "", vaulterr.Wrap(vaulterr.KindValidation, "render csv export", err)
	}
	for _, rec := range secrets {
		counter := ""
		if rec.Counter != nil {
			counter = strconv.FormatInt(*rec.Counter, 10)
		}
		created := ""
		if rec.CreatedAt != 0 {
			created = time.Unix(rec.CreatedAt, 0).UTC().Format(time.RFC3339)
		}
		period := ""
		if rec.Type != models.HOTP {
			period = strconv.Itoa(rec.Period)
		}
		row := []string{
			rec.Name,
			rec.Account,
			rec.Secret,
			string(rec.Type),
			strconv.Itoa(rec.Digits),
			period,
			rec.Algorithm,
			counter,
			created,
		}
		if err := w.Write(row); err != nil {
			return nil, "", vaulterr.Wrap(vaulterr.KindValidation, "render csv export", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", vaulterr.Wrap(vaulterr.KindValidation, "render csv export", err)
	}
	return buf.Bytes(), "text/csv; charset=utf-8", nil
}
