// Package rules matches handshake reported model and firmware information
// against a rule tree, producing capability grants and denials plus
// per-model settings. Probing tells a driver what the firmware claims;
// rules encode what particular models actually do.
package rules

// Input is the environment a rule filter is evaluated against. Fields come
// from the firmware information returned during handshake.
type Input struct {
	Model    string
	Board    string
	Firmware string
}

// Actions are applied when a rule's filter matches.
type Actions struct {
	Grant    []string
	Deny     []string
	Settings Settings
}

// Rule is one node of the rule tree. Children are only evaluated when the
// parent matched, and may refine or override its actions.
type Rule struct {
	Description string
	Filter      string
	Actions     Actions
	Children    []Rule
}

// Settings carries loosely typed per-model tunables, for example a default
// baud rate for a firmware family.
type Settings map[string]any

func (s Settings) String(k string) (string, bool) {
	if v, found := s[k]; found {
		val, ok := v.(string)
		return val, ok
	}

	return "", false
}

func (s Settings) Int(k string) (int, bool) {
	if v, found := s[k]; found {
		val, ok := v.(int)
		return val, ok
	}

	return 0, false
}

func (s Settings) Bool(k string) (bool, bool) {
	if v, found := s[k]; found {
		val, ok := v.(bool)
		return val, ok
	}

	return false, false
}

// Output is the merged result of every matching rule, in tree order: later
// matches override earlier ones per capability name.
type Output struct {
	// Capabilities maps capability name to granted (true) or denied
	// (false). Names absent from the map are left to the probe result.
	Capabilities map[string]bool
	Settings     Settings
}
