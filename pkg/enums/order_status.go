package enums

// OrderStatus moves pending -> delivered or pending -> cancelled, never back.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{OrderStatusPending, OrderStatusDelivered, OrderStatusCancelled}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool {
	_, err := ParseOrderStatus(string(s))
	return err == nil
}

// IsTerminal reports whether s admits no further transition.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	return parse(orderStatuses, "order status", raw)
}
