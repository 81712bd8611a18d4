package orders

import "fmt"

type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard  PaymentMethod = "DEBIT_CARD"
	PaymentPayPal     PaymentMethod = "PAYPAL"
)

// Recognized reports whether the method is one the order accepts.
func (m PaymentMethod) Recognized() bool {
	switch m {
	case PaymentCreditCard, PaymentDebitCard, PaymentPayPal:
		return true
	}
	return false
}

// Item is a line of an order. It has no identity outside its order.
type Item struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   Money  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
}

func NewItem(productID, name string, unitPrice Money, qty int) (Item, error) {
	if qty <= 0 {
		return Item{}, fmt.Errorf("%w: product %s qty %d", ErrInvalidQuantity, productID, qty)
	}
	if productID == "" {
		return Item{}, fmt.Errorf("%w: empty product id", ErrInvalidOrder)
	}
	return Item{ProductID: productID, ProductName: name, UnitPrice: unitPrice, Quantity: qty}, nil
}

func (it Item) Subtotal() Money {
	return it.UnitPrice.Times(it.Quantity)
}
