package headless

import "github.com/xraph/headless/id"

// ID is the identifier type for all headless entities.
type ID = id.ID

// Prefix identifies the entity type encoded in an ID.
type Prefix = id.Prefix
