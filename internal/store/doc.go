// Package store provides SQLite-backed durable storage for the order bot.
//
// Tables:
//   - orders: one row per order; the cart snapshot (parsed) and meta bag are
//     JSON, the total is a decimal string
//   - customers: keyed by phone
//   - catalog_items: active products with three price tiers
//   - payment_notifications: processed payment ids (durable dedup)
//
// # Invariants
//
//   - Order ids are assigned once at insert and never change.
//   - Meta is merged, never replaced.
//   - delivered_at is written only on the first transition to DELIVERED,
//     and that transition also settles payment (status PAID).
//   - Customer upserts never blank a stored field.
//
// Order creation and customer updates are independent statements; there is
// no transaction spanning both.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Timestamps are stored as fixed-width UTC text so ORDER BY on them is
// chronological.
package store
