// Package seed loads fixture companies, customers and coupons from gzipped
// JSON-lines files and imports them into the store.
package seed

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vitaly-zn/coupons-project-back-end/internal/model"
)

// Record kinds.
const (
	KindCompany  = "company"
	KindCustomer = "customer"
	KindCoupon   = "coupon"
)

// Record is one line of a seed file.
type Record struct {
	Kind     string          `json:"kind"`
	Company  *model.Company  `json:"company,omitempty"`
	Customer *model.Customer `json:"customer,omitempty"`
	Coupon   *model.Coupon   `json:"coupon,omitempty"`
}

// Fixtures is the decoded content of a seed file.
type Fixtures struct {
	Companies []model.Company
	Customers []model.Customer
	Coupons   []model.Coupon
}

// Len returns the total number of records.
func (f *Fixtures) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Companies) + len(f.Customers) + len(f.Coupons)
}

// Loader reads a seed file.
type Loader interface {
	Load(ctx context.Context, path string) (*Fixtures, error)
}

// decode reads gzipped JSON lines from r. Blank lines are ignored.
func decode(ctx context.Context, r io.Reader) (*Fixtures, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	out := &Fixtures{}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := out.add(rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read seed data: %w", err)
	}
	return out, nil
}

func (f *Fixtures) add(rec Record) error {
	switch rec.Kind {
	case KindCompany:
		if rec.Company == nil {
			return fmt.Errorf("company record without company")
		}
		f.Companies = append(f.Companies, *rec.Company)
	case KindCustomer:
		if rec.Customer == nil {
			return fmt.Errorf("customer record without customer")
		}
		f.Customers = append(f.Customers, *rec.Customer)
	case KindCoupon:
		if rec.Coupon == nil {
			return fmt.Errorf("coupon record without coupon")
		}
		f.Coupons = append(f.Coupons, *rec.Coupon)
	default:
		return fmt.Errorf("unknown record kind %q", rec.Kind)
	}
	return nil
}

// Encode writes fixtures as gzipped JSON lines. Companies and customers come
// first so coupons can reference them on import.
func Encode(w io.Writer, f *Fixtures) error {
	gz := gzip.NewWriter(w)
	enc := json.NewEncoder(gz)

	write := func(rec Record) error {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode %s record: %w", rec.Kind, err)
		}
		return nil
	}

	for i := range f.Companies {
		if err := write(Record{Kind: KindCompany, Company: &f.Companies[i]}); err != nil {
			return err
		}
	}
	for i := range f.Customers {
		if err := write(Record{Kind: KindCustomer, Customer: &f.Customers[i]}); err != nil {
			return err
		}
	}
	for i := range f.Coupons {
		if err := write(Record{Kind: KindCoupon, Coupon: &f.Coupons[i]}); err != nil {
			return err
		}
	}
	return gz.Close()
}
