package lexicon

// defaultEntries is the embedded pronunciation table used when no lexicon
// file is configured. Variants collect the mis-transcriptions most often
// produced by speech recognition for each term.
var defaultEntries = []Entry{
	{Canonical: "espresso", Variants: []string{"expresso", "exspresso", "espreso"}},
	{Canonical: "cappuccino", Variants: []string{"capuccino", "cappucino", "capucino", "cappacino"}},
	{Canonical: "macchiato", Variants: []string{"machiato", "macchiatto", "machiatto", "mockyato"}},
	{Canonical: "latte", Variants: []string{"lattay", "latay", "lattey"}},
	{Canonical: "americano", Variants: []string{"americanno", "amerikano"}},
	{Canonical: "ristretto", Variants: []string{"ristreto", "restretto"}},
	{Canonical: "affogato", Variants: []string{"afogato", "affogatto"}},
	{Canonical: "mocha", Variants: []string{"mocca", "mokka"}},
	{Canonical: "arabica", Variants: []string{"arabika", "arrabica"}},
	{Canonical: "robusta", Variants: []string{"robusto", "rubusta"}},
	{Canonical: "barista", Variants: []string{"barrista", "baresta"}},
	{Canonical: "caffeine", Variants: []string{"cafeine", "caffiene", "caffine"}},
	{Canonical: "flat white", Variants: []string{"flat wight", "flatwhite", "flat wite"}},
	{Canonical: "cold brew", Variants: []string{"coldbrew", "cold bru"}},
	{Canonical: "french press", Variants: []string{"frenchpress", "trench press"}},
	{Canonical: "pour over", Variants: []string{"pourover", "poor over"}},
}

// Default returns the embedded pronunciation lexicon.
func Default() *Lexicon {
	lex, err := New(defaultEntries)
	if err != nil {
		// The embedded table is validated by tests; reaching this means the
		// data was edited into an invalid state.
		panic("lexicon: embedded default table invalid: " + err.Error())
	}
	return lex
}
