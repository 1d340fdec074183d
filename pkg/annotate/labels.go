package annotate

import (
	"golang.org/x/text/language"
)

// Labels are the localized pieces of the annotation line.
type Labels struct {
	Modified   string // e.g. "Bearbeitet am"
	Author     string // e.g. "von"
	DateLayout string // Go time layout
}

var supported = []language.Tag{
	language.German, // first entry is the fallback
	language.English,
	language.French,
}

var catalog = []Labels{
	{Modified: "Bearbeitet am", Author: "von", DateLayout: "02.01.2006"},
	{Modified: "Last modified on", Author: "by", DateLayout: "2006-01-02"},
	{Modified: "Modifié le", Author: "par", DateLayout: "02/01/2006"},
}

var matcher = language.NewMatcher(supported)

// LabelsFor picks the closest supported language for a BCP 47 tag such as
// "de-CH" or "en-US". Unknown or empty tags fall back to German.
func LabelsFor(locale string) Labels {
	if locale == "" {
		return catalog[0]
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return catalog[0]
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return catalog[0]
	}
	return catalog[idx]
}
