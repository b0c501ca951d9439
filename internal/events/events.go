// Package events holds the wire payloads exchanged on the bus. Encoding is
// UTF-8 JSON with snake_case field names; enums travel as their string name.
package events

import "time"

// CustomerCheckout identifies the customer and delivery address for one
// checkout session. InstanceID is the saga instance id minted by the cart.
type CustomerCheckout struct {
	CustomerID   int    `json:"customer_id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Street       string `json:"street"`
	Complement   string `json:"complement"`
	ZipCode      string `json:"zip_code"`
	City         string `json:"city"`
	State        string `json:"state"`
	PaymentType  string `json:"payment_type"`
	Installments int    `json:"installments"`
	InstanceID   string `json:"instance_id"`
}

// CartItem is a checkout line item. Version is the opaque product version
// token copied at add-time and compared downstream for staleness.
type CartItem struct {
	SellerID     int     `json:"seller_id"`
	ProductID    int     `json:"product_id"`
	ProductName  string  `json:"product_name"`
	UnitPrice    float64 `json:"unit_price"`
	FreightValue float64 `json:"freight_value"`
	Quantity     int     `json:"quantity"`
	Voucher      float64 `json:"voucher"`
	Version      string  `json:"version"`
}

// ReserveStock asks the stock service to reserve a checkout's items.
type ReserveStock struct {
	Timestamp  time.Time        `json:"timestamp"`
	Customer   CustomerCheckout `json:"customer_checkout"`
	Items      []CartItem       `json:"items"`
	InstanceID string           `json:"instance_id"`
}

// StockConfirmed carries the reservable subset of a checkout to invoicing.
type StockConfirmed struct {
	Timestamp  time.Time        `json:"timestamp"`
	Customer   CustomerCheckout `json:"customer_checkout"`
	Items      []CartItem       `json:"items"`
	InstanceID string           `json:"instance_id"`
}

// OrderItem is the invoiced view of a line item, voucher included so the
// payment step can compute the charge independently.
type OrderItem struct {
	OrderID           int       `json:"order_id"`
	OrderItemID       int       `json:"order_item_id"`
	ProductID         int       `json:"product_id"`
	ProductName       string    `json:"product_name"`
	SellerID          int       `json:"seller_id"`
	UnitPrice         float64   `json:"unit_price"`
	Quantity          int       `json:"quantity"`
	TotalItems        float64   `json:"total_items"`
	TotalAmount       float64   `json:"total_amount"`
	TotalIncentive    float64   `json:"total_incentive"`
	FreightValue      float64   `json:"freight_value"`
	ShippingLimitDate time.Time `json:"shipping_limit_date"`
}

// InvoiceIssued signals a successfully invoiced order.
type InvoiceIssued struct {
	Customer      CustomerCheckout `json:"customer"`
	OrderID       int              `json:"order_id"`
	InvoiceNumber string           `json:"invoice_number"`
	IssueDate     time.Time        `json:"issue_date"`
	TotalInvoice  float64          `json:"total_invoice"`
	Items         []OrderItem      `json:"items"`
	InstanceID    string           `json:"instance_id"`
}

// PaymentConfirmed signals an authorized charge for an order.
type PaymentConfirmed struct {
	Customer    CustomerCheckout `json:"customer"`
	OrderID     int              `json:"order_id"`
	TotalAmount float64          `json:"total_amount"`
	Items       []OrderItem      `json:"items"`
	Date        time.Time        `json:"date"`
	InstanceID  string           `json:"instance_id"`
}

// PaymentFailed signals a declined or failed charge.
type PaymentFailed struct {
	Status      string           `json:"status"`
	Customer    CustomerCheckout `json:"customer"`
	OrderID     int              `json:"order_id"`
	Items       []OrderItem      `json:"items"`
	TotalAmount float64          `json:"total_amount"`
	InstanceID  string           `json:"instance_id"`
}

// ShipmentStatus is the lifecycle of a shipment.
type ShipmentStatus string

const (
	ShipmentApproved           ShipmentStatus = "approved"
	ShipmentDeliveryInProgress ShipmentStatus = "delivery_in_progress"
	ShipmentConcluded          ShipmentStatus = "concluded"
)

// PackageStatus is the lifecycle of a single package.
type PackageStatus string

const (
	PackageShipped   PackageStatus = "shipped"
	PackageDelivered PackageStatus = "delivered"
)

// ShipmentNotification reports a shipment status transition.
type ShipmentNotification struct {
	CustomerID int            `json:"customer_id"`
	OrderID    int            `json:"order_id"`
	EventDate  time.Time      `json:"event_date"`
	InstanceID string         `json:"instance_id"`
	Status     ShipmentStatus `json:"status"`
}

// DeliveryNotification reports one package delivered.
type DeliveryNotification struct {
	CustomerID   int           `json:"customer_id"`
	OrderID      int           `json:"order_id"`
	PackageID    int           `json:"package_id"`
	SellerID     int           `json:"seller_id"`
	ProductID    int           `json:"product_id"`
	ProductName  string        `json:"product_name"`
	Status       PackageStatus `json:"status"`
	DeliveryDate time.Time     `json:"delivery_date"`
	InstanceID   string        `json:"instance_id"`
}

// PriceUpdated carries a price change tagged with the product version at
// publish time, for optimistic staleness detection downstream.
type PriceUpdated struct {
	InstanceID string  `json:"instance_id"`
	SellerID   int     `json:"seller_id"`
	ProductID  int     `json:"product_id"`
	Price      float64 `json:"price"`
	Version    string  `json:"version"`
}

// ProductUpdated carries a full product overwrite with its new version.
type ProductUpdated struct {
	SellerID     int     `json:"seller_id"`
	ProductID    int     `json:"product_id"`
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Category     string  `json:"category"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	FreightValue float64 `json:"freight_value"`
	Status       string  `json:"status"`
	Version      string  `json:"version"`
}
