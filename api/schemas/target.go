package schemas

// -- Target Resolution Schemas --

// Strategy is one locator attempt inside a TargetSpec. The Value format depends
// on the Kind: an XPath for LocatorPath, a CSS selector for LocatorClass, the
// raw attribute value for id/data/name, visible text for LocatorText and a
// free-text description for LocatorIntent.
type Strategy struct {
	Kind  LocatorKind `json:"kind"`
	Value string      `json:"value"`
}

// Validation constrains which candidates a strategy may accept.
type Validation struct {
	RequireVisible      bool   `json:"requireVisible,omitempty"`
	RequireInteractable bool   `json:"requireInteractable,omitempty"`
	TextContains        string `json:"textContains,omitempty"`
}

// TargetSpec describes exactly how to find one node, with an explicit fallback
// chain. It is consumed once per resolution call and never cached.
type TargetSpec struct {
	Primary   Strategy   `json:"primary"`
	Fallbacks []Strategy `json:"fallbacks,omitempty"`
	Validate  Validation `json:"validate,omitempty"`

	// Strict disables the auto-generated relaxed fallbacks; only the supplied
	// strategies run and only a high-confidence candidate is accepted.
	Strict bool `json:"strict,omitempty"`
	// DisableIntentFallback turns off the last-resort fuzzy resolution.
	DisableIntentFallback bool `json:"disableIntentFallback,omitempty"`

	// Retries is the number of attempt-rounds over the whole chain. Zero means
	// the configured default.
	Retries int `json:"retries,omitempty"`
	// TimeoutMs bounds the entire resolution. Zero means the configured default.
	TimeoutMs int `json:"timeoutMs,omitempty"`
}

// Valid reports whether the spec can be attempted at all. A spec needs a
// primary strategy with a non-empty value; everything else has defaults.
func (s *TargetSpec) Valid() bool {
	return s != nil && s.Primary.Kind != "" && s.Primary.Value != ""
}
