package core

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Live handles, keyed by the uuid handed out to callers.
var (
	ownersMu sync.RWMutex
	owners   = map[uuid.UUID]interface{}{}
)

func IdentifierAquireNewID(owner interface{}) uuid.UUID {
	ownersMu.Lock()
	defer ownersMu.Unlock()

	id := uuid.New()
	owners[id] = owner
	return id
}

func IdentifierLookup(id uuid.UUID) (interface{}, bool) {
	ownersMu.RLock()
	defer ownersMu.RUnlock()

	owner, ok := owners[id]
	return owner, ok
}

func IdentifierReleaseID(id uuid.UUID) error {
	ownersMu.Lock()
	defer ownersMu.Unlock()

	if _, ok := owners[id]; !ok {
		return fmt.Errorf("identifier_release_id: id '%s' is not registered. Nothing was done", id)
	}
	delete(owners, id)
	return nil
}

func IdentifierCount() int {
	ownersMu.RLock()
	defer ownersMu.RUnlock()
	return len(owners)
}
