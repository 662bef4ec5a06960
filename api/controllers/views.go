package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/superbazaar/storefront-api/pkg/db/models"
)

type productView struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	Description    string    `json:"description,omitempty"`
	Price          string    `json:"price"`
	DiscountPrice  *string   `json:"discount_price,omitempty"`
	EffectivePrice string    `json:"effective_price"`
	Stock          int       `json:"stock"`
	Available      bool      `json:"available"`
	Featured       bool      `json:"featured"`
}

func newProductView(p *models.Product) productView {
	view := productView{
		ID:             p.ID,
		Name:           p.Name,
		Slug:           p.Slug,
		Description:    p.Description,
		Price:          p.Price.StringFixed(2),
		EffectivePrice: p.EffectivePrice().StringFixed(2),
		Stock:          p.Stock,
		Available:      p.Available,
		Featured:       p.Featured,
	}
	if p.DiscountPrice != nil {
		dp := p.DiscountPrice.StringFixed(2)
		view.DiscountPrice = &dp
	}
	return view
}

type cartItemView struct {
	ProductID uuid.UUID   `json:"product_id"`
	Product   productView `json:"product"`
	Quantity  int         `json:"quantity"`
	LineTotal string      `json:"line_total"`
}

type cartView struct {
	ID        uuid.UUID      `json:"id"`
	Items     []cartItemView `json:"items"`
	ItemCount int            `json:"item_count"`
	Total     string         `json:"total"`
}

func newCartView(c *models.Cart) cartView {
	view := cartView{
		ID:    c.ID,
		Items: make([]cartItemView, 0, len(c.Items)),
		Total: c.TotalPrice().StringFixed(2),
	}
	for i := range c.Items {
		item := &c.Items[i]
		view.Items = append(view.Items, cartItemView{
			ProductID: item.ProductID,
			Product:   newProductView(&item.Product),
			Quantity:  item.Quantity,
			LineTotal: item.Cost().StringFixed(2),
		})
		view.ItemCount += item.Quantity
	}
	return view
}

type addressView struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	FullName   string    `json:"full_name"`
	Phone      string    `json:"phone"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	IsDefault  bool      `json:"is_default"`
}

func newAddressView(a *models.Address) addressView {
	return addressView{
		ID:         a.ID,
		Type:       a.Type.String(),
		FullName:   a.FullName,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		IsDefault:  a.IsDefault,
	}
}

type orderItemView struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Price       string    `json:"price"`
	Quantity    int       `json:"quantity"`
	Subtotal    string    `json:"subtotal"`
}

type paymentView struct {
	State          string     `json:"state"`
	Method         string     `json:"method"`
	Amount         string     `json:"amount"`
	Currency       string     `json:"currency"`
	TransactionID  *string    `json:"transaction_id,omitempty"`
	FailureCode    *string    `json:"failure_code,omitempty"`
	FailureMessage *string    `json:"failure_message,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
}

type orderView struct {
	ID              uuid.UUID       `json:"id"`
	OrderNumber     string          `json:"order_number"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	PaymentMethod   string          `json:"payment_method"`
	Subtotal        string          `json:"subtotal"`
	TaxAmount       string          `json:"tax_amount"`
	ShippingCost    string          `json:"shipping_cost"`
	DiscountAmount  string          `json:"discount_amount"`
	Total           string          `json:"total"`
	CustomerNote    string          `json:"customer_note,omitempty"`
	Items           []orderItemView `json:"items"`
	Payment         *paymentView    `json:"payment,omitempty"`
	ShippingAddress *addressView    `json:"shipping_address,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func newOrderView(o *models.Order) orderView {
	view := orderView{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		Status:         o.Status.String(),
		PaymentStatus:  o.PaymentStatus.String(),
		PaymentMethod:  o.PaymentMethod.String(),
		Subtotal:       o.Subtotal.StringFixed(2),
		TaxAmount:      o.TaxAmount.StringFixed(2),
		ShippingCost:   o.ShippingCost.StringFixed(2),
		DiscountAmount: o.DiscountAmount.StringFixed(2),
		Total:          o.Total.StringFixed(2),
		CustomerNote:   o.CustomerNote,
		Items:          make([]orderItemView, 0, len(o.Items)),
		CreatedAt:      o.CreatedAt,
	}
	for i := range o.Items {
		item := &o.Items[i]
		view.Items = append(view.Items, orderItemView{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.Price.StringFixed(2),
			Quantity:    item.Quantity,
			Subtotal:    item.Subtotal.StringFixed(2),
		})
	}
	if o.Payment != nil {
		view.Payment = &paymentView{
			State:          o.Payment.PaymentState.String(),
			Method:         o.Payment.PaymentMethod.String(),
			Amount:         o.Payment.Amount.StringFixed(2),
			Currency:       o.Payment.Currency,
			TransactionID:  o.Payment.TransactionID,
			FailureCode:    o.Payment.FailureCode,
			FailureMessage: o.Payment.FailureMessage,
			PaidAt:         o.Payment.PaidAt,
		}
	}
	if o.ShippingAddress != nil {
		addr := newAddressView(o.ShippingAddress)
		view.ShippingAddress = &addr
	}
	return view
}

func newOrderViews(orders []models.Order) []orderView {
	views := make([]orderView, 0, len(orders))
	for i := range orders {
		views = append(views, newOrderView(&orders[i]))
	}
	return views
}

type orderPage struct {
	Orders     []orderView `json:"orders"`
	NextCursor string      `json:"next_cursor,omitempty"`
}
