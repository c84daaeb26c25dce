// Package session models the signed-in owner's store data as loaded from the backend.
package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/myoutlet-admin/restaurants"
	"github.com/mitchellh/mapstructure"
)

// Data is either NoSession or Present with at least one store.
type Data struct {
	stores []restaurants.Store
}

// NoSession is the empty value.
var NoSession = Data{}

// Present wraps stores. An empty list yields NoSession.
func Present(stores []restaurants.Store) Data {
	if len(stores) == 0 {
		return NoSession
	}
	cp := make([]restaurants.Store, len(stores))
	copy(cp, stores)
	return Data{stores: cp}
}

func (d Data) IsPresent() bool {
	return len(d.stores) > 0
}

// Stores returns a copy of the store list.
func (d Data) Stores() []restaurants.Store {
	cp := make([]restaurants.Store, len(d.stores))
	copy(cp, d.stores)
	return cp
}

// Primary is the first store, the one the dashboard shows.
func (d Data) Primary() (restaurants.Store, bool) {
	if len(d.stores) == 0 {
		return restaurants.Store{}, false
	}
	return d.stores[0], true
}

// FromPayload normalizes a backend store payload:
// an object becomes a one element list, an array is kept, null or an empty array is NoSession.
func FromPayload(raw []byte) (Data, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return NoSession, nil
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return NoSession, fmt.Errorf("[session FromPayload] invalid json: %w", err)
	}

	var items []any
	switch v := payload.(type) {
	case nil:
		return NoSession, nil
	case map[string]any:
		items = []any{v}
	case []any:
		items = v
	default:
		return NoSession, fmt.Errorf("[session FromPayload] unexpected payload type %T", payload)
	}

	stores := make([]restaurants.Store, 0, len(items))
	for i, item := range items {
		var s restaurants.Store
		if err := decodeStore(item, &s); err != nil {
			return NoSession, fmt.Errorf("[session FromPayload] store %d: %w", i, err)
		}
		stores = append(stores, s)
	}
	return Present(stores), nil
}

func decodeStore(input any, out *restaurants.Store) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
