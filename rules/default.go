package rules

// DefaultRules returns the built in model overrides, correcting what
// probing alone gets wrong on known hardware.
func DefaultRules() []Rule {
	return []Rule{
		{
			Description: "centre equatorial and hybrid mounts home to a mechanical index",
			Filter:      `Model startsWith "CEM" or Model startsWith "GEM" or Model startsWith "HAE" or Model startsWith "HAZ" or Model startsWith "HEM"`,
			Actions: Actions{
				Grant: []string{"CanFindHome", "CanGoHome", "CanSetHome"},
			},
			Children: []Rule{
				{
					Description: "CEM120 family links at high speed",
					Filter:      `Model startsWith "CEM120"`,
					Actions: Actions{
						Settings: Settings{"baud": 115200},
					},
				},
			},
		},
		{
			Description: "early iEQ45 Pro main boards ignore the home search command",
			Filter:      `Model == "iEQ45 Pro" and Board < "161028"`,
			Actions: Actions{
				Deny: []string{"CanFindHome"},
			},
		},
	}
}
