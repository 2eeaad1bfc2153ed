package deck

import "strings"

// Model identifiers derived from the device-reported model name.
const (
	ModelStudio     = "hdStudio"
	ModelStudioPro  = "hdStudioPro"
	ModelStudio12G  = "hdStudio12G"
	ModelStudioMini = "hdStudioMini"
	ModelExtreme8K  = "hdExtreme8K"
	ModelDuplicator = "bmdDup4K"
)

// DetectModel maps a model name such as "HyperDeck Studio Mini" to a model id.
// Unrecognised names fall back to the base studio model.
func DetectModel(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "extreme"):
		return ModelExtreme8K
	case strings.Contains(lower, "mini"):
		return ModelStudioMini
	case strings.Contains(lower, "duplicator"):
		return ModelDuplicator
	case strings.Contains(lower, "12g"):
		return ModelStudio12G
	case strings.Contains(lower, "pro"):
		return ModelStudioPro
	default:
		return ModelStudio
	}
}

// DefaultSlotCount is assumed when device info omits the slot count.
const DefaultSlotCount = 2

// Ptr returns a pointer to v, for building sparse updates.
func Ptr[T any](v T) *T {
	return &v
}
