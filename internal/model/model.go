// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// DefaultNamespaceID is the id of the namespace created at first database
// initialization. It always exists and is never deletable; snippets from a
// deleted namespace are reassigned to it.
const DefaultNamespaceID = "default"

// Namespace groups snippets. Exactly one namespace has IsDefault=true at all
// times after initialization.
type Namespace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	IsDefault bool      `json:"isDefault"`
}

// Snippet represents a saved code snippet.
// The `json:"..."` tags tell Go's encoding/json package how to serialize/deserialize
// this struct to/from JSON. The camelCase names match the REST service payloads.
//
// A template is a snippet with IsTemplate=true — it shares the table and the
// wire shape, so there is no separate Template struct.
type Snippet struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	Language    string    `json:"language"`
	Category    string    `json:"category"`
	HasPreview  bool      `json:"hasPreview"`
	NamespaceID string    `json:"namespaceId"`
	IsTemplate  bool      `json:"isTemplate"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
