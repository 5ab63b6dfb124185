package plan

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a plan catalog from a YAML file. The file holds a list of
// plans under a top-level "plans" key:
//
//	plans:
//	  - type: trial
//	    name: Trial
//	    trial_days: 14
//	    limits:
//	      customers: 5
//	  - type: starter
//	    name: Starter
//	    price_ref: pri_starter_monthly
//	    interval: monthly
//	    ...
//
// This exists so operators can tune limits and price refs per environment
// without a rebuild; Default() remains the fallback when no file is deployed.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}
	return Parse(data)
}

// Parse builds a catalog from raw YAML.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, fmt.Errorf("parse plan catalog: %w", err))
	}
	return NewCatalog(doc.Plans...)
}
