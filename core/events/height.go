package events

import (
	"strconv"

	"streamvault/core/types"
)

const (
	// TypeHeightChanged is emitted whenever the block clock advances.
	TypeHeightChanged = "chain.height"
)

type HeightChanged struct {
	Height uint64
}

func (HeightChanged) EventType() string { return TypeHeightChanged }

func (e HeightChanged) Event() *types.Event {
	attrs := map[string]string{
		"height": strconv.FormatUint(e.Height, 10),
	}
	return &types.Event{Type: TypeHeightChanged, Attributes: attrs}
}
