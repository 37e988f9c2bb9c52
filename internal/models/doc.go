// Package models defines the core domain models for the shared-expense ledger.
//
// # Models
//
//   - Expense: a payment made by one user on behalf of a set of participants
//   - ExpenseSplit: one participant's computed share of an expense (derived)
//   - Balance: a directed edge "FromUserID owes ToUserID" in one currency and scope
//   - Settlement: an immutable record of a payment that reduced a balance edge
//   - Group: a named member set that scopes balances
//   - User: an opaque identity owned by the authentication layer
//
// # Money
//
// All amounts are int64 values in the minor unit of their currency (cents for USD,
// paise for INR, yen for JPY). Conversion to and from decimal representations
// happens only at the API boundary (see ToMinor and FromMinor).
//
// # Design Principles
//
//  1. **No floats**: arithmetic on money is integer-only
//  2. **Avoid circular references**: use ID strings instead of pointers for relationships
//  3. **Unrepresentable invalid input**: split parameters are a sealed Share variant
//     created through validating constructors
package models
