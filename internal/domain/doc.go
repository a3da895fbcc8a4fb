// Package domain contains the core business entities of the catalogue, users
// and books, together with the rating rules that hold regardless of how a
// book is stored or served.
package domain
