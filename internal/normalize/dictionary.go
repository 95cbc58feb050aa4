package normalize

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// defaultLegalForms lists legal-form and generic trade words that carry no
// identifying signal. Entries are folded (lowercase, no accents); words inside
// an entry match across spaces, hyphens and underscores.
var defaultLegalForms = []string{
	"sarl", "sas", "sasu", "eurl", "ei", "eirl", "sa", "sci", "snc", "selarl",
	"auto entrepreneur", "micro entreprise", "micro entrepreneur",
	"societe", "ste", "etablissements", "etablissement", "ets",
	"entreprise", "entreprises", "groupe", "group", "agence", "cabinet", "holding",
	"multi services", "services", "service",
	"batiment", "batiments", "travaux", "renovation", "renovations",
	"construction", "constructions", "habitat",
	"general", "generale", "generales", "generaux",
}

// Dictionary holds the words stripped from business names before matching.
type Dictionary struct {
	LegalForms []string `yaml:"legal_forms"`
}

// DefaultDictionary returns a copy of the built-in legal-form dictionary.
func DefaultDictionary() Dictionary {
	forms := make([]string, len(defaultLegalForms))
	copy(forms, defaultLegalForms)
	return Dictionary{LegalForms: forms}
}

// LoadDictionary reads extra legal forms from a YAML file and appends them to
// the built-in dictionary. An empty path returns the defaults.
//
//	legal_forms:
//	  - scop
//	  - "entreprise individuelle"
func LoadDictionary(path string) (Dictionary, error) {
	dict := DefaultDictionary()
	if path == "" {
		return dict, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Dictionary{}, eris.Wrapf(err, "normalize: read dictionary %s", path)
	}

	var extra Dictionary
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return Dictionary{}, eris.Wrapf(err, "normalize: parse dictionary %s", path)
	}

	for _, f := range extra.LegalForms {
		if f = strings.TrimSpace(fold(f)); f != "" {
			dict.LegalForms = append(dict.LegalForms, f)
		}
	}
	return dict, nil
}
