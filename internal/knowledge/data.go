package knowledge

// defaultEntries is the embedded answer base used when no knowledge file is
// configured. Questions are phrased the way people actually ask them, since
// retrieval is plain sequence similarity against these strings.
var defaultEntries = []Entry{
	{
		Question: "how do i make espresso",
		Answer: "Pull an espresso with 18 grams of finely ground coffee at 9 bars " +
			"of pressure for 25 to 30 seconds. A good shot runs syrupy and carries " +
			"a golden crema on top.",
	},
	{
		Question: "cappuccino recipe",
		Answer: "A cappuccino is one third espresso, one third steamed milk and one " +
			"third milk foam. Pull the shot first, then pour the steamed milk and " +
			"cap it with the foam.",
	},
	{
		Question: "how do i make a cappuccino",
		Answer: "Pull a single espresso shot into a 150 to 180 milliliter cup, then " +
			"add equal parts steamed milk and milk foam. Dust with cocoa if you " +
			"like it sweet.",
	},
	{
		Question: "how do i make latte art",
		Answer: "Latte art needs glossy microfoam: steam milk with the wand tip just " +
			"under the surface, then pour low and fast into the center and finish " +
			"with a quick lift through the stream.",
	},
	{
		Question: "why is my coffee bitter",
		Answer: "Bitter coffee usually means over-extraction. Try a coarser grind, " +
			"slightly cooler water or a shorter brew time, and check that the beans " +
			"are not roasted too dark for your taste.",
	},
	{
		Question: "what grind size for french press",
		Answer: "Use a coarse grind for a french press, about the texture of sea " +
			"salt. Steep for four minutes, then press slowly and pour right away.",
	},
	{
		Question: "arabica vs robusta",
		Answer: "Arabica is sweeter and more aromatic with about half the caffeine. " +
			"Robusta is harsher and more bitter but yields a thicker crema, which " +
			"is why many espresso blends mix the two.",
	},
	{
		Question: "milk steaming temperature",
		Answer: "Steam milk to 55 to 65 degrees Celsius. Past 70 the milk scalds " +
			"and loses its sweetness, so stop while the pitcher is still just " +
			"comfortable to hold.",
	},
	{
		Question: "how do i make cold brew",
		Answer: "Steep coarsely ground coffee in cold water at a one to eight ratio " +
			"for 12 to 18 hours, then strain. Cold brew keeps in the fridge for up " +
			"to two weeks.",
	},
	{
		Question: "how should i store coffee beans",
		Answer: "Keep beans whole in an airtight container away from light, heat " +
			"and moisture. Grind right before brewing, and buy only what you " +
			"finish within a month.",
	},
	{
		Question: "what water temperature for brewing coffee",
		Answer: "Brew with water between 90 and 96 degrees Celsius. Water straight " +
			"off the boil scorches the grounds and pulls out harsh, bitter notes.",
	},
	{
		Question: "how do i make a pour over",
		Answer: "Rinse the paper filter, add a medium-fine grind, and bloom with " +
			"twice the coffee's weight in water for 30 seconds. Then pour in slow " +
			"circles up to a one to sixteen ratio.",
	},
	{
		Question: "how much caffeine is in espresso",
		Answer: "A single espresso shot carries about 63 milligrams of caffeine. A " +
			"typical 250 milliliter cup of drip coffee has 95 milligrams or more.",
	},
}

// Default returns the embedded answer base.
func Default() *Base {
	base, err := NewBase(defaultEntries)
	if err != nil {
		// The embedded base is validated by tests; reaching this means the
		// data was edited into an invalid state.
		panic("knowledge: embedded answer base invalid: " + err.Error())
	}
	return base
}
