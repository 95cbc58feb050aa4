package main

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-match/internal/normalize"
	"github.com/sells-group/listing-match/internal/store"
)

func initDialer() (store.Dialer, error) {
	dial, err := store.NewDialer(store.Options{
		Driver:      cfg.Store.Driver,
		DatabaseURL: cfg.Store.DatabaseURL,
		Table:       cfg.Store.Table,
	})
	if err != nil {
		return nil, eris.Wrap(err, "init dialer")
	}
	return dial, nil
}

// initNormalizer builds the name normalizer, extended by the optional
// legal-forms file.
func initNormalizer() (*normalize.Normalizer, error) {
	if cfg.Normalize.LegalFormsFile == "" {
		return normalize.Default(), nil
	}
	dict, err := normalize.LoadDictionary(cfg.Normalize.LegalFormsFile)
	if err != nil {
		return nil, eris.Wrap(err, "init normalizer")
	}
	return normalize.New(dict), nil
}
