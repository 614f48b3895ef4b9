package seed

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/masterpol/internal/domain/employee"
	"github.com/xenking/masterpol/internal/domain/partner"
	"github.com/xenking/masterpol/internal/domain/product"
)

// ErrInvalidRecord is returned when a seed record fails validation.
var ErrInvalidRecord = errors.New("invalid seed record")

type partnerRecord struct {
	ID           int64  `json:"id"`
	Type         string `json:"type"`
	CompanyName  string `json:"company_name"`
	LegalAddress string `json:"legal_address"`
	INN          string `json:"inn"`
	DirectorName string `json:"director_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Rating       *int   `json:"rating"`
}

type productRecord struct {
	ID      int64           `json:"id"`
	Type    string          `json:"type"`
	Name    string          `json:"name"`
	Article string          `json:"article"`
	Price   decimal.Decimal `json:"min_partner_price"`
}

type employeeRecord struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Position string `json:"position"`
}

type saleRecord struct {
	ID          int64            `json:"id"`
	PartnerID   int64            `json:"partner_id"`
	ProductID   int64            `json:"product_id"`
	Quantity    int              `json:"quantity"`
	SaleDate    time.Time        `json:"sale_date"`
	TotalAmount *decimal.Decimal `json:"total_amount"`
}

// Load reads partners, products, employees and sales from dir. Each kind is
// read from <kind>.json.gz or <kind>.json; a kind with neither file is left
// empty. Files are decoded concurrently.
func Load(ctx context.Context, dir string) (*Dataset, error) {
	var (
		partners  []partnerRecord
		products  []productRecord
		employees []employeeRecord
		sales     []saleRecord
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return readRecords(ctx, dir, "partners", &partners) })
	g.Go(func() error { return readRecords(ctx, dir, "products", &products) })
	g.Go(func() error { return readRecords(ctx, dir, "employees", &employees) })
	g.Go(func() error { return readRecords(ctx, dir, "sales", &sales) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return build(partners, products, employees, sales)
}

// readRecords decodes a JSON array from the first existing candidate file.
func readRecords[T any](ctx context.Context, dir, kind string, out *[]T) error {
	for _, name := range []string{kind + ".json.gz", kind + ".json"} {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		var r io.Reader = f
		if filepath.Ext(name) == ".gz" {
			gz, err := pgzip.NewReader(f)
			if err != nil {
				return errors.Wrapf(err, "create gzip reader for %s", path)
			}
			defer func() { _ = gz.Close() }()
			r = gz
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := json.NewDecoder(r).Decode(out); err != nil {
			return errors.Wrapf(err, "decode %s", path)
		}
		return nil
	}
	return nil
}

func build(
	partners []partnerRecord,
	products []productRecord,
	employees []employeeRecord,
	sales []saleRecord,
) (*Dataset, error) {
	ds := &Dataset{
		Partners:  make([]partner.Partner, 0, len(partners)),
		Products:  make([]product.Product, 0, len(products)),
		Employees: make([]Employee, 0, len(employees)),
		Sales:     make([]Sale, 0, len(sales)),
	}

	for _, r := range partners {
		rating := partner.DefaultRating
		if r.Rating != nil {
			rating = *r.Rating
		}
		switch {
		case r.ID <= 0:
			return nil, errors.Wrapf(ErrInvalidRecord, "partner %q: id must be positive", r.CompanyName)
		case r.INN == "":
			return nil, errors.Wrapf(ErrInvalidRecord, "partner %d: inn required", r.ID)
		case rating < 0:
			return nil, errors.Wrapf(ErrInvalidRecord, "partner %d: negative rating", r.ID)
		}
		ds.Partners = append(ds.Partners, partner.Partner{
			ID:           r.ID,
			Type:         r.Type,
			CompanyName:  r.CompanyName,
			LegalAddress: r.LegalAddress,
			INN:          r.INN,
			DirectorName: r.DirectorName,
			Email:        r.Email,
			Phone:        r.Phone,
			Rating:       rating,
		})
	}

	prices := make(map[int64]decimal.Decimal, len(products))
	for _, r := range products {
		switch {
		case r.ID <= 0:
			return nil, errors.Wrapf(ErrInvalidRecord, "product %q: id must be positive", r.Article)
		case r.Article == "":
			return nil, errors.Wrapf(ErrInvalidRecord, "product %d: article required", r.ID)
		case r.Price.IsNegative():
			return nil, errors.Wrapf(ErrInvalidRecord, "product %d: negative price", r.ID)
		}
		prices[r.ID] = r.Price
		ds.Products = append(ds.Products, product.Product{
			ID:      r.ID,
			Type:    r.Type,
			Name:    r.Name,
			Article: r.Article,
			Price:   r.Price,
		})
	}

	for _, r := range employees {
		if r.ID <= 0 {
			return nil, errors.Wrapf(ErrInvalidRecord, "employee %q: id must be positive", r.FullName)
		}
		position := r.Position
		if position == "" {
			position = employee.DefaultPosition
		}
		ds.Employees = append(ds.Employees, Employee{ID: r.ID, FullName: r.FullName, Position: position})
	}

	for _, r := range sales {
		switch {
		case r.ID <= 0:
			return nil, errors.Wrap(ErrInvalidRecord, "sale: id must be positive")
		case r.Quantity <= 0:
			return nil, errors.Wrapf(ErrInvalidRecord, "sale %d: quantity must be positive", r.ID)
		case r.SaleDate.IsZero():
			return nil, errors.Wrapf(ErrInvalidRecord, "sale %d: sale_date required", r.ID)
		}

		var amount decimal.Decimal
		if r.TotalAmount != nil {
			amount = *r.TotalAmount
		} else {
			price, ok := prices[r.ProductID]
			if !ok {
				return nil, errors.Wrapf(ErrInvalidRecord,
					"sale %d: total_amount missing and product %d not in dataset", r.ID, r.ProductID)
			}
			amount = price.Mul(decimal.NewFromInt(int64(r.Quantity)))
		}

		ds.Sales = append(ds.Sales, Sale{
			ID:        r.ID,
			PartnerID: r.PartnerID,
			ProductID: r.ProductID,
			Quantity:  r.Quantity,
			SoldAt:    r.SaleDate.UTC(),
			Amount:    amount,
		})
	}

	return ds, nil
}
