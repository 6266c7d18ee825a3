package models

// BlockKind tags the variants of the block sum type.
type BlockKind string

const (
	KindGap            BlockKind = "GAP"
	KindPriceRef       BlockKind = "PRICE_REF"
	KindCondition      BlockKind = "CONDITION"
	KindGapResult      BlockKind = "GAP_RESULT"
	KindAction         BlockKind = "ACTION"
	KindConditionGroup BlockKind = "CONDITION_GROUP"
)

// Market is one leg of a gap formula.
type Market string

const (
	MarketSpot Market = "spot"
	MarketPerp Market = "perp"
)

// Provider is a simulated price source.
type Provider string

const (
	ProviderBinance Provider = "binance"
	ProviderUpbit   Provider = "upbit"
)

// Operator compares a condition's left operand against its right ref.
type Operator string

const (
	OpGTE Operator = "≥"
	OpLTE Operator = "≤"
	OpGT  Operator = ">"
	OpLT  Operator = "<"
	OpEQ  Operator = "=="
	OpNEQ Operator = "!="
)

// ActionType is one of the fixed trading intents an Action block can hold.
type ActionType string

const (
	ActionBuySpotMaxLong   ActionType = "binance_buy_spot_max_long"
	ActionBuyPerpMaxShort  ActionType = "binance_buy_perp_max_short"
	ActionSellSpotMaxLong  ActionType = "binance_sell_spot_max_long"
	ActionSellPerpMaxShort ActionType = "binance_sell_perp_max_short"
)

var actionLabels = map[ActionType]string{
	ActionBuySpotMaxLong:   "Binance Buy Spot Max Long",
	ActionBuyPerpMaxShort:  "Binance Buy Perp Max Short",
	ActionSellSpotMaxLong:  "Binance Sell Spot Max Long",
	ActionSellPerpMaxShort: "Binance Sell Perp Max Short",
}

// ActionLabel returns the human-readable form used in execution logs.
func ActionLabel(a ActionType) string {
	if l, ok := actionLabels[a]; ok {
		return l
	}
	return string(a)
}

// Base carries the fields shared by every block variant. X/Y are UI-only
// display coordinates; the service stores them without interpreting them.
type Base struct {
	ID   string    `json:"id"`
	Kind BlockKind `json:"kind"`
	X    *float64  `json:"x,omitempty"`
	Y    *float64  `json:"y,omitempty"`
}

func (b Base) BlockID() string      { return b.ID }
func (b Base) BlockKind() BlockKind { return b.Kind }

// Block is one node in a strategy graph. Relationships between blocks are
// id references into the owning store, never pointers.
type Block interface {
	BlockID() string
	BlockKind() BlockKind
}

// PriceRef is an inline price snapshot owned exclusively by a GapFormula.
// It is a value object, not a store-resident block.
type PriceRef struct {
	ID       string   `json:"id"`
	Market   Market   `json:"market"`
	Symbol   string   `json:"symbol"`
	Provider Provider `json:"provider,omitempty"`
	Price    float64  `json:"price"`
	TS       int64    `json:"ts"`
}

// GapFormula computes spot minus perp from its two market-role refs.
// Result is nil while either ref is missing (explicit no-value, not zero).
type GapFormula struct {
	Base
	Refs   []PriceRef `json:"refs"`
	Result *float64   `json:"result"`
}

// PriceRefBlock is a standalone, store-resident price snapshot. Attaching it
// to a gap formula copies the snapshot; the block itself is never consumed.
type PriceRefBlock struct {
	Base
	Market   Market   `json:"market"`
	Symbol   string   `json:"symbol"`
	Provider Provider `json:"provider,omitempty"`
	Price    float64  `json:"price"`
	TS       int64    `json:"ts"`
}

// GapResult mirrors the cached result of its owning gap formula. At most one
// exists per formula. InlineOnly results exist solely to back a condition's
// right operand and are never rendered free-floating.
type GapResult struct {
	Base
	GapID      string  `json:"gapId"`
	Value      float64 `json:"value"`
	TS         int64   `json:"ts,omitempty"`
	InlineOnly bool    `json:"inlineOnly,omitempty"`
}

// Condition compares a numeric left operand (nil when unset) against the
// value of a referenced GapResult.
type Condition struct {
	Base
	Left          *float64 `json:"left"`
	Op            Operator `json:"op"`
	RightRefID    string   `json:"rightRefId,omitempty"`
	ParentGroupID string   `json:"parentGroupId,omitempty"`
}

// ConditionGroup owns an ordered list of member conditions and optionally
// links forward to an action block.
type ConditionGroup struct {
	Base
	Conditions   []string `json:"conditions"`
	NextActionID string   `json:"nextActionId,omitempty"`
}

// Action holds an ordered, deduplicated list of trading intents and
// optionally links back to the condition group that triggers it.
type Action struct {
	Base
	Actions         []ActionType `json:"actions"`
	PrevConditionID string       `json:"prevConditionId,omitempty"`
}
