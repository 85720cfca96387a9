package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/textnorm"
)

// ErrNoHeader is returned for a file without a usable header row.
var ErrNoHeader = eris.New("importer: no company, website or email column in header")

// ErrUnsupported is returned for an extension other than csv, tsv or xlsx.
var ErrUnsupported = eris.New("importer: unsupported file type")

// Column names a contact field.
type Column string

const (
	ColEmail      Column = "email"
	ColPhone      Column = "phone"
	ColCompany    Column = "company_name"
	ColWebsite    Column = "website"
	ColCity       Column = "city"
	ColPostalCode Column = "postal_code"
	ColSector     Column = "sector"
	ColFirstName  Column = "first_name"
	ColLastName   Column = "last_name"
)

// aliases maps folded header labels to columns. Unknown headers land in
// Contact.Attributes.
var aliases = map[string]Column{
	"email":               ColEmail,
	"e-mail":              ColEmail,
	"mail":                ColEmail,
	"courriel":            ColEmail,
	"adresse email":       ColEmail,
	"phone":               ColPhone,
	"telephone":           ColPhone,
	"tel":                 ColPhone,
	"mobile":              ColPhone,
	"portable":            ColPhone,
	"company":             ColCompany,
	"company_name":        ColCompany,
	"company name":        ColCompany,
	"entreprise":          ColCompany,
	"societe":             ColCompany,
	"raison sociale":      ColCompany,
	"nom entreprise":      ColCompany,
	"nom de l'entreprise": ColCompany,
	"website":             ColWebsite,
	"site":                ColWebsite,
	"site web":            ColWebsite,
	"site internet":       ColWebsite,
	"url":                 ColWebsite,
	"city":                ColCity,
	"ville":               ColCity,
	"postal_code":         ColPostalCode,
	"postal code":         ColPostalCode,
	"code postal":         ColPostalCode,
	"cp":                  ColPostalCode,
	"zip":                 ColPostalCode,
	"sector":              ColSector,
	"secteur":             ColSector,
	"activite":            ColSector,
	"first_name":          ColFirstName,
	"first name":          ColFirstName,
	"prenom":              ColFirstName,
	"last_name":           ColLastName,
	"last name":           ColLastName,
	"nom de famille":      ColLastName,
}

// RowError is a row that could not become a contact.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// Result holds the contacts of a file and its rejected rows.
type Result struct {
	Contacts []model.Contact `json:"contacts"`
	Rejected []RowError      `json:"rejected,omitempty"`
}

// mapper turns rows into contacts once the header is known.
type mapper struct {
	cols   []Column
	labels []string
}

func newMapper(header []string) (*mapper, error) {
	m := &mapper{cols: make([]Column, len(header)), labels: make([]string, len(header))}
	usable := false
	for i, h := range header {
		label := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		m.labels[i] = label
		col, ok := aliases[textnorm.Fold(label)]
		if !ok {
			continue
		}
		m.cols[i] = col
		if col == ColCompany || col == ColWebsite || col == ColEmail {
			usable = true
		}
	}
	if !usable {
		return nil, ErrNoHeader
	}
	return m, nil
}

func (m *mapper) contact(row []string) model.Contact {
	var c model.Contact
	for i, v := range row {
		if i >= len(m.cols) || v == "" {
			continue
		}
		switch m.cols[i] {
		case ColEmail:
			c.Email = model.NormalizeEmail(v)
		case ColPhone:
			c.Phones = append(c.Phones, splitPhones(v)...)
		case ColCompany:
			c.CompanyName = v
		case ColWebsite:
			c.Website = v
		case ColCity:
			c.City = v
		case ColPostalCode:
			c.PostalCode = v
		case ColSector:
			c.Sector = v
		case ColFirstName:
			c.FirstName = v
		case ColLastName:
			c.LastName = v
		default:
			if c.Attributes == nil {
				c.Attributes = map[string]string{}
			}
			c.Attributes[m.labels[i]] = v
		}
	}
	return c
}

func splitPhones(v string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' || r == '/' || r == '|' })
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// collector validates mapped rows and drops duplicate addresses.
type collector struct {
	m    *mapper
	seen map[string]bool
	res  *Result
}

func (c *collector) add(rowNum int, row []string) {
	if blank(row) {
		return
	}
	ct := c.m.contact(row)
	if err := ct.Validate(); err != nil {
		c.res.Rejected = append(c.res.Rejected, RowError{Row: rowNum, Error: err.Error()})
		return
	}
	if key := ct.Key(); key != "" {
		if c.seen[key] {
			c.res.Rejected = append(c.res.Rejected, RowError{Row: rowNum, Error: "duplicate email " + key})
			return
		}
		c.seen[key] = true
	}
	c.res.Contacts = append(c.res.Contacts, ct)
}

func blank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

// ReadContactsCSV reads contacts from CSV. Row numbers in Rejected are
// 1-based and count the header.
func ReadContactsCSV(ctx context.Context, path string, opts CSVOptions) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: open csv")
	}
	defer f.Close() //nolint:errcheck

	rows, errs := StreamCSV(ctx, f, opts)
	res := &Result{}
	var col *collector
	n := 0
	for row := range rows {
		n++
		if col == nil {
			m, err := newMapper(row)
			if err != nil {
				// Drain so the reader goroutine exits.
				for range rows {
				}
				return nil, err
			}
			col = &collector{m: m, seen: map[string]bool{}, res: res}
			continue
		}
		col.add(n, row)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	if col == nil {
		return nil, ErrNoHeader
	}
	return res, nil
}

// ReadContactsXLSX reads contacts from the first sheet (or opts' sheet).
func ReadContactsXLSX(path string, opts XLSXOptions) (*Result, error) {
	rows, err := ReadXLSX(path, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}
	m, err := newMapper(rows[0])
	if err != nil {
		return nil, err
	}
	res := &Result{}
	col := &collector{m: m, seen: map[string]bool{}, res: res}
	for i, row := range rows[1:] {
		col.add(i+2, row)
	}
	return res, nil
}

// Load picks the reader from the file extension.
func Load(ctx context.Context, path string) (*Result, error) {
	var (
		res *Result
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		res, err = ReadContactsCSV(ctx, path, CSVOptions{})
	case ".tsv":
		res, err = ReadContactsCSV(ctx, path, CSVOptions{Delimiter: '\t'})
	case ".xlsx":
		res, err = ReadContactsXLSX(path, XLSXOptions{})
	default:
		return nil, eris.Wrap(ErrUnsupported, path)
	}
	if err != nil {
		return nil, err
	}
	zap.L().Info("importer: file loaded",
		zap.String("path", path),
		zap.Int("contacts", len(res.Contacts)),
		zap.Int("rejected", len(res.Rejected)),
	)
	return res, nil
}
