// Package factory provides user-defined factories for test fixtures.
package factory

import (
	"fmt"

	"github.com/gofrs/uuid"

	"github.com/codeshare/codeshare/src/codeshare/entity"
)

// UUID is a user-defined factory for a random uuid.UUID.
func UUID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

// Document is a user-defined factory for a tracked Go source document.
func Document(id int) *entity.Document {
	return &entity.Document{
		ID:       entity.DocumentID(fmt.Sprintf("pkg/file%v.go", id)),
		Content:  fmt.Sprintf("package pkg\n\n// file %v\n", id),
		Language: "go",
	}
}

// Selection is a user-defined factory for a cursor selection covering the
// given rows in full.
func Selection(startRow int, endRow int) entity.Selection {
	return entity.Selection{
		Start: entity.Position{Row: startRow, Col: 0},
		End:   entity.Position{Row: endRow, Col: 0},
	}
}
