// Package types contains common types used across the application
package types

// Entry is one row of the standings ladder.
type Entry struct {
	Rank   int    `json:"rank"`
	Player string `json:"player"`
	Points int    `json:"points"`
}
