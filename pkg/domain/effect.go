package domain

// EffectType is the kind of outbound render request.
type EffectType string

const (
	EffectText   EffectType = "text"
	EffectMenu   EffectType = "menu"
	EffectSystem EffectType = "system"
)

// EffectOption is one selectable choice of a menu effect.
type EffectOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Effect is an outbound message the channel must deliver.
// The engine never performs the delivery itself.
type Effect struct {
	Type    EffectType     `json:"type"`
	Text    string         `json:"text"`
	Options []EffectOption `json:"options,omitempty"`
}
