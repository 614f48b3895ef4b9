package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/masterpol/internal/domain/order"
)

const maxBodySize = 1 << 20

// readBody decodes the request body as one JSON object, calling fn per field.
func readBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return badRequest("read body", err)
	}
	if err := jx.DecodeBytes(body).Obj(fn); err != nil {
		return badRequest("invalid json", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, badRequest("invalid id "+strconv.Quote(r.PathValue("id")), nil)
	}
	return id, nil
}

func decodeOptInt(d *jx.Decoder) (*int, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeOptInt64(d *jx.Decoder) (*int64, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int64()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// wholeQuantityError reports a quantity that is a JSON number but not a whole
// count of units.
type wholeQuantityError struct {
	productID int64
	raw       string
}

func (e *wholeQuantityError) Error() string {
	return fmt.Sprintf("quantity must be a whole number for product %d, got %s", e.productID, e.raw)
}

func (e *wholeQuantityError) Unwrap() error { return order.ErrInvalidQuantity }

// decodeQuantity reads a quantity number. ok is false when the number is not
// a whole count that fits in an int.
func decodeQuantity(d *jx.Decoder) (q int, raw string, ok bool, err error) {
	if d.Next() != jx.Number {
		return 0, "", false, errors.Errorf("quantity must be a number, got %s", d.Next())
	}
	num, err := d.Num()
	if err != nil {
		return 0, "", false, err
	}
	raw = num.String()
	if !num.IsInt() {
		return 0, raw, false, nil
	}
	v, err := num.Int64()
	if err != nil || int64(int(v)) != v {
		return 0, raw, false, nil
	}
	return int(v), raw, true, nil
}

// decodeItems decodes the items array. The first item with a non-whole
// quantity is reported through invalid so the request fails validation
// instead of parsing.
func decodeItems(d *jx.Decoder, invalid *error) ([]order.ItemRequest, error) {
	var items []order.ItemRequest
	err := d.Arr(func(d *jx.Decoder) error {
		var (
			it    order.ItemRequest
			raw   string
			whole = true
		)
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "product_id":
				it.ProductID, err = d.Int64()
			case "quantity":
				it.Quantity, raw, whole, err = decodeQuantity(d)
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		if !whole && *invalid == nil {
			*invalid = &wholeQuantityError{productID: it.ProductID, raw: raw}
		}
		items = append(items, it)
		return nil
	})
	return items, err
}

func decodeOrderRequest(w http.ResponseWriter, r *http.Request) (order.CreateOrderRequest, error) {
	var (
		req     order.CreateOrderRequest
		invalid error
	)
	err := readBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "partner_id":
			req.PartnerID, err = d.Int64()
		case "manager_id":
			req.ManagerID, err = decodeOptInt64(d)
		case "delivery_method":
			req.DeliveryMethod, err = d.Str()
		case "items":
			req.Items, err = decodeItems(d, &invalid)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return req, err
	}
	return req, invalid
}
