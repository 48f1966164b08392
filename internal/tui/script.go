package tui

// Line is one dual subtitle: the original sentence and its translation.
type Line struct {
	ID         string
	Original   string
	Translated string
}

// demoScript is the built-in dual subtitle script used by the demo app.
// The repeated words ("la", "de", "no") are deliberate: they exercise the
// position-disambiguated selection model.
func demoScript() []Line {
	return []Line{
		{
			ID:         "cue-001",
			Original:   "No hay mal que por bien no venga",
			Translated: "Every cloud has a silver lining",
		},
		{
			ID:         "cue-002",
			Original:   "La casa de la esquina era la más antigua del barrio",
			Translated: "The house on the corner was the oldest in the neighborhood",
		},
		{
			ID:         "cue-003",
			Original:   "Más vale pájaro en mano que ciento volando",
			Translated: "A bird in the hand is worth two in the bush",
		},
		{
			ID:         "cue-004",
			Original:   "El que no arriesga no gana",
			Translated: "Nothing ventured, nothing gained",
		},
	}
}
