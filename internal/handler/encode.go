package handler

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/masterpol/internal/domain/employee"
	"github.com/xenking/masterpol/internal/domain/order"
	"github.com/xenking/masterpol/internal/domain/partner"
	"github.com/xenking/masterpol/internal/domain/product"
)

// Money and rates are written as strings to keep them exact.
func encodeDecimal(e *jx.Encoder, name string, d decimal.Decimal) {
	e.Field(name, func(e *jx.Encoder) { e.Str(d.String()) })
}

func encodeMoney(e *jx.Encoder, name string, d decimal.Decimal) {
	e.Field(name, func(e *jx.Encoder) { e.Str(d.StringFixed(2)) })
}

func encodeTime(e *jx.Encoder, name string, t *time.Time) {
	e.Field(name, func(e *jx.Encoder) {
		if t == nil {
			e.Null()
			return
		}
		e.Str(t.UTC().Format(time.RFC3339Nano))
	})
}

func encodeOptInt64(e *jx.Encoder, name string, v *int64) {
	e.Field(name, func(e *jx.Encoder) {
		if v == nil {
			e.Null()
			return
		}
		e.Int64(*v)
	})
}

func encodeLineItems(e *jx.Encoder, items []order.LineItem) {
	e.Field("items", func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, it := range items {
				e.Obj(func(e *jx.Encoder) {
					e.Field("product_id", func(e *jx.Encoder) { e.Int64(it.ProductID) })
					e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
					e.Field("article", func(e *jx.Encoder) { e.Str(it.Article) })
					encodeMoney(e, "price", it.UnitPrice)
					e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					encodeMoney(e, "total", it.LineTotal)
				})
			}
		})
	})
}

func encodeTotals(e *jx.Encoder, t order.Totals) {
	encodeMoney(e, "subtotal", t.Subtotal)
	encodeDecimal(e, "discount_rate", t.DiscountRate)
	encodeMoney(e, "discount_amount", t.DiscountAmount)
	encodeMoney(e, "total", t.Total)
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("partner_id", func(e *jx.Encoder) { e.Int64(o.PartnerID) })
		encodeOptInt64(e, "manager_id", o.ManagerID)
		encodeTime(e, "created_at", &o.CreatedAt)
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status.String()) })
		encodeLineItems(e, o.Items)
		encodeTotals(e, o.Totals().Rounded())
		e.Field("prepayment_received", func(e *jx.Encoder) { e.Bool(o.PrepaymentReceived) })
		encodeTime(e, "prepayment_date", o.PrepaymentAt)
		e.Field("full_payment_received", func(e *jx.Encoder) { e.Bool(o.FullPaymentReceived) })
		encodeTime(e, "full_payment_date", o.FullPaymentAt)
		e.Field("delivery_method", func(e *jx.Encoder) { e.Str(o.DeliveryMethod) })
		encodeTime(e, "production_date", o.ProductionStartedAt)
		encodeTime(e, "completion_date", o.CompletedAt)
		e.Field("notes", func(e *jx.Encoder) { e.Str(o.Notes) })
		e.Field("version", func(e *jx.Encoder) { e.Int64(o.Version) })
	})
}

func encodeQuote(e *jx.Encoder, q *order.Quote) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("partner_id", func(e *jx.Encoder) { e.Int64(q.PartnerID) })
		encodeLineItems(e, q.Items)
		encodeTotals(e, q.Totals.Rounded())
	})
}

func encodeSummary(e *jx.Encoder, p *partner.Partner, s *partner.SalesSummary, rate decimal.Decimal) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("partner_id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("company_name", func(e *jx.Encoder) { e.Str(p.CompanyName) })
		e.Field("partner_type", func(e *jx.Encoder) { e.Str(p.Type) })
		e.Field("rating", func(e *jx.Encoder) { e.Int(p.Rating) })
		e.Field("total_quantity", func(e *jx.Encoder) { e.Int64(s.TotalQuantity) })
		encodeMoney(e, "total_amount", s.TotalAmount)
		e.Field("unique_products", func(e *jx.Encoder) { e.Int(s.UniqueProducts) })
		encodeDecimal(e, "discount_rate", rate)
	})
}

func encodePartner(e *jx.Encoder, p *partner.Partner) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("type", func(e *jx.Encoder) { e.Str(p.Type) })
		e.Field("company_name", func(e *jx.Encoder) { e.Str(p.CompanyName) })
		e.Field("legal_address", func(e *jx.Encoder) { e.Str(p.LegalAddress) })
		e.Field("inn", func(e *jx.Encoder) { e.Str(p.INN) })
		e.Field("director_name", func(e *jx.Encoder) { e.Str(p.DirectorName) })
		e.Field("email", func(e *jx.Encoder) { e.Str(p.Email) })
		e.Field("phone", func(e *jx.Encoder) { e.Str(p.Phone) })
		e.Field("rating", func(e *jx.Encoder) { e.Int(p.Rating) })
	})
}

func encodeEmployee(e *jx.Encoder, emp employee.Employee) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(emp.ID) })
		e.Field("full_name", func(e *jx.Encoder) { e.Str(emp.FullName) })
		e.Field("position", func(e *jx.Encoder) { e.Str(emp.Position) })
	})
}

func encodeRatingChange(e *jx.Encoder, c partner.RatingChange) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("partner_id", func(e *jx.Encoder) { e.Int64(c.PartnerID) })
		e.Field("old_rating", func(e *jx.Encoder) { e.Int(c.OldRating) })
		e.Field("new_rating", func(e *jx.Encoder) { e.Int(c.NewRating) })
		encodeTime(e, "changed_at", &c.ChangedAt)
		encodeOptInt64(e, "changed_by", c.ChangedBy)
		e.Field("reason", func(e *jx.Encoder) { e.Str(c.Reason) })
	})
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("type", func(e *jx.Encoder) { e.Str(p.Type) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("article", func(e *jx.Encoder) { e.Str(p.Article) })
		encodeMoney(e, "min_partner_price", p.Price)
	})
}

func encodeTopSelling(e *jx.Encoder, t product.TopSelling) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(t.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(t.Name) })
		e.Field("type", func(e *jx.Encoder) { e.Str(t.Type) })
		e.Field("quantity_sold", func(e *jx.Encoder) { e.Int64(t.QuantitySold) })
		encodeMoney(e, "revenue", t.Revenue)
	})
}
