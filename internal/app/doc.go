// Package app provides the application service layer.
//
// Sits between HTTP handlers and domain repositories: stamps new subscriptions
// with an ID and the clock time, stores them, and counts the outcome.
package app
