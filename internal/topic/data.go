package topic

// defaultKeywords is the embedded admission vocabulary used when no keyword
// file is configured. Order matters: the first matching keyword names the
// decision, so drink names come before the generic brewing terms.
var defaultKeywords = []string{
	"coffee",
	"espresso",
	"latte",
	"cappuccino",
	"macchiato",
	"americano",
	"ristretto",
	"affogato",
	"mocha",
	"flat white",
	"cold brew",
	"pour over",
	"french press",
	"aeropress",
	"chemex",
	"moka pot",
	"drip",
	"decaf",
	"brew",
	"bean",
	"roast",
	"grind",
	"tamp",
	"crema",
	"portafilter",
	"barista",
	"caffeine",
	"milk",
	"steam",
	"arabica",
	"robusta",
}

// Default returns the embedded keyword set.
func Default() KeywordSet {
	ks, err := NewKeywordSet(defaultKeywords)
	if err != nil {
		// The embedded vocabulary is validated by tests; reaching this means
		// the data was edited into an invalid state.
		panic("topic: embedded keyword set invalid: " + err.Error())
	}
	return ks
}
