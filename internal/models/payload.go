package models

// PayloadAction discriminates create vs move drag payloads.
type PayloadAction string

const (
	PayloadCreate PayloadAction = "create"
	PayloadMove   PayloadAction = "move"
)

// DragPayload is the serializable drag/drop record the front end hands to a
// drop target. Create payloads instantiate a new block; move payloads
// relocate or reparent an existing one by id. Fields beyond Action and Kind
// are populated per kind and otherwise left zero.
type DragPayload struct {
	Action     PayloadAction `json:"action"`
	Kind       BlockKind     `json:"kind"`
	ID         string        `json:"id,omitempty"`
	Market     Market        `json:"market,omitempty"`
	Symbol     string        `json:"symbol,omitempty"`
	Provider   Provider      `json:"provider,omitempty"`
	Value      *float64      `json:"value,omitempty"`
	GapID      string        `json:"gapId,omitempty"`
	TS         int64         `json:"ts,omitempty"`
	ActionType ActionType    `json:"actionType,omitempty"`
}

// PriceQuote is one fetched price from a provider.
type PriceQuote struct {
	Market   Market   `json:"market"`
	Symbol   string   `json:"symbol"`
	Provider Provider `json:"provider"`
	Price    float64  `json:"price"`
	TS       int64    `json:"ts"`
}
