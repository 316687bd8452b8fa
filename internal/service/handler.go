package service

import "clipvault/pkg/types"

// ChangeHandler is implemented by components that need to be notified after
// a clipboard item has been persisted (e.g. the websocket hub).
type ChangeHandler interface {
	HandleItemSaved(item *types.Item)
}
