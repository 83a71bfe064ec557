// Package domain defines the records the order bot persists and passes
// between components: orders and their cart snapshots, customers, and the
// product catalog.
//
// Money is carried as decimal.Decimal throughout. Orders move along two
// independent axes:
//
//   - Status (payment): PENDING -> PAID
//   - DeliveryStatus (logistics): PENDING -> IN_DELIVERY -> DELIVERED
//
// DELIVERED implies PAID; stores enforce that when recording delivery.
package domain
