package domain

// Event type tags published on the bus. PriceUpdate is the only type produced
// by this service; the order/position/risk tags are consumed by downstream
// trading collaborators that share the event vocabulary.
const (
	EventPriceUpdate     = "price_update"
	EventTrendingUpdate  = "trending_update"
	EventOrderCreated    = "order_created"
	EventOrderFilled     = "order_filled"
	EventPositionUpdated = "position_updated"
	EventRiskAlert       = "risk_alert"
)
