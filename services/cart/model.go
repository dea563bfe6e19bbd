package cart

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	formcodec "github.com/go-playground/form/v4"

	"github.com/valter-tonon/digimenu-core/lib/myerrors"
)

type DeliveryMode string

const (
	DeliveryModeTable    DeliveryMode = "table"
	DeliveryModeDelivery DeliveryMode = "delivery"
	DeliveryModePickup   DeliveryMode = "pickup"
)

func (m DeliveryMode) IsValid() bool {
	switch m {
	case DeliveryModeTable, DeliveryModeDelivery, DeliveryModePickup:
		return true
	}
	return false
}

// Additional is an extra on top of a cart item (sauce, topping, side).
type Additional struct {
	UID      int64
	Name     string
	Price    int64
	Quantity int
}

type CartItem struct {
	UID         int64
	ProductUID  int64
	Identify    string
	Name        string
	Price       int64
	Quantity    int
	Notes       string
	Additionals []Additional
}

// mergeKey is the composite identity of a line item: the same product with
// the same additionals and the same notes is the same line. The external
// identify takes precedence over the numeric product uid when present.
func (i CartItem) mergeKey() string {
	base := i.Identify
	if base == "" {
		base = strconv.FormatInt(i.ProductUID, 10)
	}

	additionalUIDs := make([]string, 0, len(i.Additionals))
	for _, a := range i.Additionals {
		additionalUIDs = append(additionalUIDs, strconv.FormatInt(a.UID, 10))
	}
	sort.Strings(additionalUIDs)

	return fmt.Sprintf("%s|%s|%s", base, strings.Join(additionalUIDs, ","), i.Notes)
}

func (i CartItem) Subtotal() int64 {
	total := i.Price
	for _, a := range i.Additionals {
		total += a.Price * int64(a.Quantity)
	}
	return total * int64(i.Quantity)
}

// Cart is the persisted cart for one store table. Like the checkout session
// it expires lazily: a stale record is treated as cleared on the next read.
type Cart struct {
	UID          string
	StoreUID     string
	TableUID     string
	DeliveryMode DeliveryMode
	Items        []CartItem
	LastUpdated  time.Time
}

func (c Cart) IsExpired(now time.Time) bool {
	return now.Sub(c.LastUpdated) > cartDuration
}

func (c Cart) TotalPrice() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}

func (c Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// nextItemUID assigns the internal numeric id for a new line item.
func (c Cart) nextItemUID() int64 {
	var highest int64
	for _, item := range c.Items {
		if item.UID > highest {
			highest = item.UID
		}
	}
	return highest + 1
}

// findItemIndex locates a line item by internal uid, by external identify or
// by product uid, in that order. Callers address items with whichever
// identifier they happen to have.
func (c Cart) findItemIndex(ref string) int {
	if uid, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for i, item := range c.Items {
			if item.UID == uid {
				return i
			}
		}
	}

	for i, item := range c.Items {
		if item.Identify != "" && item.Identify == ref {
			return i
		}
	}

	if productUID, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for i, item := range c.Items {
			if item.ProductUID == productUID {
				return i
			}
		}
	}

	return -1
}

func createCartUID(storeUID string, tableUID string) string {
	return storeUID + "_" + tableUID
}

// ParseAdditionalUID turns the id the menu hands us into a numeric uid.
// Ids that are not numeric get a synthetic uid derived from a stable hash of
// the name, so the same additional always maps to the same uid.
func ParseAdditionalUID(raw string, name string) int64 {
	if uid, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return uid
	}

	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

type ContextForm struct {
	DeliveryMode DeliveryMode `form:"deliveryMode"`
}

func NewContextFormFromRequest(r *http.Request) (ContextForm, error) {
	form := ContextForm{}
	err := decodeForm(r, &form)
	if err != nil {
		return ContextForm{}, err
	}

	if form.DeliveryMode == "" {
		form.DeliveryMode = DeliveryModeTable
	}
	if !form.DeliveryMode.IsValid() {
		return ContextForm{}, myerrors.NewInvalidInputErrorf("unknown delivery mode %s", form.DeliveryMode)
	}

	return form, nil
}

// AdditionalForm carries the id as the menu supplies it, which is not always
// numeric.
type AdditionalForm struct {
	ID       string `form:"id"`
	Name     string `form:"name"`
	Price    int64  `form:"price"`
	Quantity int    `form:"quantity"`
}

type ItemForm struct {
	ProductUID  int64            `form:"productUid"`
	Identify    string           `form:"identify"`
	Name        string           `form:"name"`
	Price       int64            `form:"price"`
	Quantity    int              `form:"quantity"`
	Notes       string           `form:"notes"`
	Additionals []AdditionalForm `form:"additionals"`
}

func NewItemFormFromRequest(r *http.Request) (ItemForm, error) {
	form := ItemForm{}
	err := decodeForm(r, &form)
	if err != nil {
		return ItemForm{}, err
	}

	if form.ProductUID == 0 && form.Identify == "" {
		return ItemForm{}, myerrors.NewInvalidInputErrorf("item needs a productUid or an identify")
	}
	if form.Quantity <= 0 {
		form.Quantity = 1
	}

	return form, nil
}

func (f ItemForm) toItem() CartItem {
	additionals := make([]Additional, 0, len(f.Additionals))
	for _, a := range f.Additionals {
		quantity := a.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		additionals = append(additionals, Additional{
			UID:      ParseAdditionalUID(a.ID, a.Name),
			Name:     a.Name,
			Price:    a.Price,
			Quantity: quantity,
		})
	}

	item := CartItem{
		ProductUID: f.ProductUID,
		Identify:   f.Identify,
		Name:       f.Name,
		Price:      f.Price,
		Quantity:   f.Quantity,
		Notes:      f.Notes,
	}
	if len(additionals) > 0 {
		item.Additionals = additionals
	}
	return item
}

// UpdateForm carries a partial item update. Nil fields are left untouched.
type UpdateForm struct {
	Quantity *int    `form:"quantity"`
	Notes    *string `form:"notes"`
}

func NewUpdateFormFromRequest(r *http.Request) (UpdateForm, error) {
	form := UpdateForm{}
	err := decodeForm(r, &form)
	if err != nil {
		return UpdateForm{}, err
	}

	if form.Quantity == nil && form.Notes == nil {
		return UpdateForm{}, myerrors.NewInvalidInputErrorf("nothing to update")
	}

	return form, nil
}

func decodeForm(r *http.Request, target interface{}) error {
	err := r.ParseForm()
	if err != nil {
		return myerrors.NewInvalidInputError(err)
	}

	err = formcodec.NewDecoder().Decode(target, r.Form)
	if err != nil {
		return myerrors.NewInvalidInputError(fmt.Errorf("error decoding form: %s", err))
	}

	return nil
}
