// Package domain defines the subscription model and the repository contract.
//
// No implementation code - just contracts. Interfaces live here so adapters
// and the application layer can depend on them without importing each other.
package domain
