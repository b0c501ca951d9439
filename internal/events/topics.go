package events

// Canonical topics, published once by the producing service.
const (
	TopicCheckout         = "checkout"
	TopicStockConfirmed   = "stock_confirmed"
	TopicInvoiceIssued    = "invoice_issued"
	TopicPaymentConfirmed = "payment_confirmed"
	TopicPaymentFailed    = "payment_failed"
	TopicShipment         = "shipment"
	TopicDelivery         = "delivery"
	TopicPriceChanges     = "price_changes"
	TopicProductChanges   = "product_changes"
)

// Per-service input channels, named {domain}_{eventKind}_channel. Each
// service subscribes only to its own channels; the relay fans the canonical
// topics out to them.
const (
	CartPriceUpdateChannel   = "cart_price_update_channel"
	CartProductUpdateChannel = "cart_product_update_channel"

	StockProductUpdateChannel    = "stock_product_update_channel"
	StockCheckoutUpdateChannel   = "stock_checkout_update_channel"
	StockPaymentConfirmedChannel = "stock_payment_confirmed_channel"
	StockPaymentFailedChannel    = "stock_payment_failed_channel"

	OrderStockConfirmedChannel   = "order_stock_confirmed_channel"
	OrderShipmentChannel         = "order_shipment_channel"
	OrderPaymentConfirmedChannel = "order_payment_confirmed_channel"
	OrderPaymentFailedChannel    = "order_payment_failed_channel"

	PaymentInvoiceIssuedChannel = "payment_invoice_issued_channel"

	ShipmentPaymentConfirmedChannel = "shipment_payment_confirmed_channel"
)

// Command channels, published by the outer edge to start a saga. They are
// direct inputs, not relay destinations.
const (
	CartCheckoutChannel       = "cart_checkout_channel"
	ProductPriceUpdateChannel = "product_price_update_channel"
	ProductUpdateChannel      = "product_update_channel"
)

// Routes is the canonical-to-service fan-out table the relay runs on.
func Routes() map[string][]string {
	return map[string][]string{
		TopicCheckout:       {StockCheckoutUpdateChannel},
		TopicStockConfirmed: {OrderStockConfirmedChannel},
		TopicInvoiceIssued:  {PaymentInvoiceIssuedChannel},
		TopicPaymentConfirmed: {
			StockPaymentConfirmedChannel,
			ShipmentPaymentConfirmedChannel,
			OrderPaymentConfirmedChannel,
		},
		TopicPaymentFailed: {
			StockPaymentFailedChannel,
			OrderPaymentFailedChannel,
		},
		TopicShipment:       {OrderShipmentChannel},
		TopicPriceChanges:   {CartPriceUpdateChannel},
		TopicProductChanges: {CartProductUpdateChannel, StockProductUpdateChannel},
	}
}
