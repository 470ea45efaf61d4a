// Package orders implements the order-placement REST proxy.
//
// It exposes a small HTTP surface for listing and creating orders per
// account, forwards placements to the exchange trading API with signed
// headers, and persists a local order record for every accepted order.
package orders
